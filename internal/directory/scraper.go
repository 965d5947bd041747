package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"stock-finder/pkg/logger"
)

const (
	DefaultBaseURL = "https://www.tudorwatch.com"
	// DefaultListPath centers the map on the continental US so every store is listed.
	DefaultListPath   = "/en/retailers/unitedstates?lat=38.555474567327764&lng=-95.66499999999999&z=4"
	detailPathPrefix  = "/retailers/details/unitedstates/"
	defaultCountry    = "United States"
	scraperUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultScrapeWait = 500 * time.Millisecond
)

type ScraperOptions struct {
	BaseURL  string
	ListPath string

	HTTPClient *http.Client
	// Limiter paces detail page requests. Defaults to one every 500ms.
	Limiter *rate.Limiter
	// Workers bounds concurrent detail fetches. Defaults to 5.
	Workers int
}

// Scraper builds the retailer directory from the brand's store locator.
type Scraper struct {
	baseURL  string
	listPath string
	client   *http.Client
	limiter  *rate.Limiter
	workers  int
}

func NewScraper(opts ScraperOptions) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ListPath == "" {
		opts.ListPath = DefaultListPath
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(defaultScrapeWait), 1)
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	return &Scraper{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		listPath: opts.ListPath,
		client:   opts.HTTPClient,
		limiter:  opts.Limiter,
		workers:  opts.Workers,
	}
}

// Load scrapes the full directory. It satisfies Loader.
func (s *Scraper) Load(ctx context.Context) ([]Retailer, error) {
	return s.ScrapeAll(ctx)
}

// ScrapeAll fetches the listing page and every retailer detail page.
// Detail pages that fail are logged and skipped. Results are sorted by name.
func (s *Scraper) ScrapeAll(ctx context.Context) ([]Retailer, error) {
	log := logger.From(ctx)

	list, err := s.fetch(ctx, s.baseURL+s.listPath)
	if err != nil {
		return nil, fmt.Errorf("directory: fetch retailer list: %w", err)
	}
	urls := ExtractDetailURLs(list, s.baseURL)
	log.Info("retailer detail pages found", "count", len(urls))

	var (
		mu  sync.Mutex
		out = make([]Retailer, 0, len(urls))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, u := range urls {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			doc, err := s.fetch(gctx, u)
			if err != nil {
				log.Warn("retailer detail fetch failed", "url", u, "err", err)
				return nil
			}
			r := ParseDetail(doc, u)
			mu.Lock()
			out = append(out, r)
			mu.Unlock()
			log.Debug("retailer scraped", "name", r.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Scraper) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	return goquery.NewDocumentFromReader(res.Body)
}

// ExtractDetailURLs returns the unique retailer detail links on a listing
// page, resolved against baseURL, in page order.
func ExtractDetailURLs(doc *goquery.Document, baseURL string) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find(`a[href*="` + detailPathPrefix + `"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = baseURL + href
		}
		if !seen[href] {
			seen[href] = true
			out = append(out, href)
		}
	})
	return out
}

var (
	nameSuffixRe = regexp.MustCompile(`\s*[-|]\s*.*$`)
	boutiqueRe   = regexp.MustCompile(`(?i)tudor boutique edition`)
	addressRe    = regexp.MustCompile(`(\d+[^,\n]+),?\s*([A-Za-z\s]+?),?\s*([A-Z]{2})\s*(\d{5})`)
	phoneTextRe  = regexp.MustCompile(`\+?1?\s*[-.]?\s*\(?(\d{3})\)?[-.\s]*(\d{3})[-.\s]*(\d{4})`)
	latRe        = regexp.MustCompile(`"lat(?:itude)?"\s*:\s*"?(-?[\d.]+)`)
	lngRe        = regexp.MustCompile(`"(?:lng|lon(?:gitude)?)"\s*:\s*"?(-?[\d.]+)`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// ParseDetail reads one retailer detail page. Missing fields stay empty.
func ParseDetail(doc *goquery.Document, detailURL string) Retailer {
	r := Retailer{
		Name:         "Unknown",
		Country:      defaultCountry,
		DetailURL:    detailURL,
		RetailerType: TypeOfficialRetailer,
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if name = strings.TrimSpace(nameSuffixRe.ReplaceAllString(name, "")); name != "" {
		r.Name = name
	}

	pageText := doc.Text()
	if boutiqueRe.MatchString(pageText) {
		r.RetailerType = TypeBoutique
	}

	addr := doc.Find("address").First()
	if addr.Length() == 0 {
		addr = doc.Find(`[class*="address"]`).First()
	}
	if addr.Length() > 0 {
		r.Address = collapse(addr.Text())
		if m := addressRe.FindStringSubmatch(r.Address); m != nil {
			r.City, r.State, r.ZipCode = strings.TrimSpace(m[2]), m[3], m[4]
		}
	} else if m := addressRe.FindStringSubmatch(pageText); m != nil {
		r.Address = strings.TrimSpace(m[1])
		r.City, r.State, r.ZipCode = strings.TrimSpace(m[2]), m[3], m[4]
	}

	if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
		r.Phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	} else if m := phoneTextRe.FindStringSubmatch(pageText); m != nil {
		r.Phone = fmt.Sprintf("+1 %s-%s-%s", m[1], m[2], m[3])
	}

	ownHost := hostOf(detailURL)
	doc.Find(`a[href^="http"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if h := hostOf(href); h == "" || (ownHost != "" && strings.HasSuffix(h, ownHost)) {
			return true
		}
		r.Website = href
		return false
	})

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		lat, lng := latRe.FindStringSubmatch(text), lngRe.FindStringSubmatch(text)
		if lat == nil || lng == nil {
			return true
		}
		la, err1 := strconv.ParseFloat(lat[1], 64)
		lo, err2 := strconv.ParseFloat(lng[1], 64)
		if err1 != nil || err2 != nil {
			return true
		}
		r.Latitude, r.Longitude = &la, &lo
		return false
	})

	// The path segment before the store slug is a state code or a city slug.
	parts := strings.Split(strings.TrimRight(pathOf(detailURL), "/"), "/")
	if len(parts) >= 3 {
		seg := parts[len(parts)-2]
		if r.State == "" && len(seg) == 2 {
			r.State = strings.ToUpper(seg)
		}
		if r.City == "" && len(seg) > 2 {
			r.City = titleCase(strings.ReplaceAll(seg, "-", " "))
		}
	}
	return r
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
