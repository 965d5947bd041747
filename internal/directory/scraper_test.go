package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const detailHTML = `<html><head><title>Shreve &amp; Co. | TUDOR</title>
<script>window.store = {"lat": 37.7887, "lng": -122.4056};</script></head>
<body>
<h1>Shreve &amp; Co. - Official TUDOR Retailer</h1>
<p>Tudor Boutique Edition</p>
<address>150 Post Street,
  San Francisco, CA 94108</address>
<a href="tel:+14154213200">Call</a>
<a href="https://www.tudorwatch.com/en/watches">Watches</a>
<a href="https://www.shreve.com/">Website</a>
</body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestParseDetail(t *testing.T) {
	r := ParseDetail(parse(t, detailHTML), "https://www.tudorwatch.com/en/retailers/details/unitedstates/california/san-francisco/shreve")

	if r.Name != "Shreve & Co." {
		t.Fatalf("unexpected name %q", r.Name)
	}
	if r.RetailerType != TypeBoutique {
		t.Fatalf("expected boutique, got %q", r.RetailerType)
	}
	if r.Address != "150 Post Street, San Francisco, CA 94108" {
		t.Fatalf("unexpected address %q", r.Address)
	}
	if r.City != "San Francisco" || r.State != "CA" || r.ZipCode != "94108" {
		t.Fatalf("unexpected city/state/zip: %q %q %q", r.City, r.State, r.ZipCode)
	}
	if r.Phone != "+14154213200" {
		t.Fatalf("unexpected phone %q", r.Phone)
	}
	if r.Website != "https://www.shreve.com/" {
		t.Fatalf("unexpected website %q", r.Website)
	}
	if !r.HasCoordinates() || *r.Latitude != 37.7887 || *r.Longitude != -122.4056 {
		t.Fatalf("unexpected coordinates %v %v", r.Latitude, r.Longitude)
	}
	if r.Country != "United States" {
		t.Fatalf("expected default country")
	}
}

func TestParseDetail_Fallbacks(t *testing.T) {
	html := `<html><head><title>Little Store</title></head><body>
	<p>Visit us or call (212) 555-0100.</p></body></html>`
	r := ParseDetail(parse(t, html), "https://www.tudorwatch.com/en/retailers/details/unitedstates/new-york/little-store")
	if r.Name != "Little Store" {
		t.Fatalf("unexpected name %q", r.Name)
	}
	if r.Phone != "+1 212-555-0100" {
		t.Fatalf("unexpected phone %q", r.Phone)
	}
	if r.City != "New York" {
		t.Fatalf("expected city from url, got %q", r.City)
	}
	if r.RetailerType != TypeOfficialRetailer || r.HasCoordinates() {
		t.Fatalf("unexpected type/coords: %+v", r)
	}
}

func TestExtractDetailURLs(t *testing.T) {
	html := `<a href="/en/retailers/details/unitedstates/ca/a">A</a>
	<a href="/en/retailers/details/unitedstates/ca/a">A again</a>
	<a href="https://other.example/en/retailers/details/unitedstates/ny/b">B</a>
	<a href="/en/watches">not a store</a>`
	got := ExtractDetailURLs(parse(t, html), "https://www.tudorwatch.com")
	want := []string{
		"https://www.tudorwatch.com/en/retailers/details/unitedstates/ca/a",
		"https://other.example/en/retailers/details/unitedstates/ny/b",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d urls, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("url %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestScrapeAll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<a href="/retailers/details/unitedstates/ca/b-store">B</a>
		<a href="/retailers/details/unitedstates/ca/a-store">A</a>
		<a href="/retailers/details/unitedstates/ca/broken">X</a>`))
	})
	mux.HandleFunc("/retailers/details/unitedstates/ca/a-store", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h1>A Store</h1><a href="tel:+14155550001">call</a>`))
	})
	mux.HandleFunc("/retailers/details/unitedstates/ca/b-store", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h1>B Store</h1>`))
	})
	mux.HandleFunc("/retailers/details/unitedstates/ca/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewScraper(ScraperOptions{BaseURL: srv.URL, ListPath: "/list", Limiter: rate.NewLimiter(rate.Inf, 1)})
	rs, err := s.ScrapeAll(context.Background())
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 retailers (broken page skipped), got %d", len(rs))
	}
	if rs[0].Name != "A Store" || rs[1].Name != "B Store" {
		t.Fatalf("expected sorted names, got %q %q", rs[0].Name, rs[1].Name)
	}
	if rs[0].State != "CA" {
		t.Fatalf("expected state from url, got %q", rs[0].State)
	}
	if got := WithPhones(rs); len(got) != 1 || got[0].Target().Phone != "+14155550001" {
		t.Fatalf("unexpected callable retailers: %+v", got)
	}
}

func TestScrapeAll_ListFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	s := NewScraper(ScraperOptions{BaseURL: srv.URL, ListPath: "/list"})
	if _, err := s.ScrapeAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
