package webstock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"stock-finder/internal/calls"
	"stock-finder/internal/catalog"
	"stock-finder/pkg/logger"
)

type Status string

const (
	StatusInStock             Status = "in_stock"
	StatusOutOfStock          Status = "out_of_stock"
	StatusCallForAvailability Status = "call_for_availability"
	StatusUnknown             Status = "unknown"
	StatusScraperError        Status = "scraper_error"
	StatusNoScraper           Status = "no_scraper"
)

// Result is the outcome of one website lookup.
type Result struct {
	RetailerName string   `json:"retailer_name"`
	Status       Status   `json:"status"`
	ProductURL   string   `json:"product_url,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// AsCheck converts r into the form attached to call results.
func (r Result) AsCheck() calls.WebsiteCheck {
	return calls.WebsiteCheck{Status: string(r.Status), ProductURL: r.ProductURL, Price: r.Price, Message: r.Message}
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Options struct {
	Sites      []Site
	HTTPClient *http.Client
	// Limiter paces requests across all sites. Defaults to 2 requests/second.
	Limiter *rate.Limiter
	// MaxWorkers bounds CheckBatch concurrency. Defaults to 3.
	MaxWorkers int
}

// Checker looks up products on retailer websites.
type Checker struct {
	sites      []Site
	client     *http.Client
	limiter    *rate.Limiter
	maxWorkers int
}

func NewChecker(opts Options) *Checker {
	if opts.Sites == nil {
		opts.Sites = DefaultSites()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 3
	}
	return &Checker{sites: opts.Sites, client: opts.HTTPClient, limiter: opts.Limiter, maxWorkers: opts.MaxWorkers}
}

// Lookup finds the site for a directory retailer name. Names match when either
// contains one of the site aliases.
func (c *Checker) Lookup(retailerName string) (Site, bool) {
	n := strings.ToLower(strings.TrimSpace(retailerName))
	if n == "" {
		return Site{}, false
	}
	for _, s := range c.sites {
		for _, a := range s.Aliases {
			if strings.Contains(n, a) || strings.Contains(a, n) {
				return s, true
			}
		}
	}
	return Site{}, false
}

// Supported lists the retailer names with a known website search.
func (c *Checker) Supported() []string {
	out := make([]string, 0, len(c.sites))
	for _, s := range c.sites {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// Check searches retailerName's website for reference. It never returns an
// error; failures come back as scraper_error results.
func (c *Checker) Check(ctx context.Context, retailerName, reference string) Result {
	site, ok := c.Lookup(retailerName)
	if !ok {
		return Result{RetailerName: retailerName, Status: StatusNoScraper, Message: "No scraper available for " + retailerName}
	}
	res, err := c.checkSite(ctx, site, reference)
	if err != nil {
		logger.From(ctx).Warn("website check failed", "retailer", site.Name, "err", err)
		return Result{RetailerName: site.Name, Status: StatusScraperError, Message: "Error: " + err.Error()}
	}
	return res
}

// CheckRetailer is Check for a catalog product. ok is false when the retailer
// has no known website search.
func (c *Checker) CheckRetailer(ctx context.Context, retailerName string, p catalog.Product) (calls.WebsiteCheck, bool) {
	if _, ok := c.Lookup(retailerName); !ok {
		return calls.WebsiteCheck{}, false
	}
	return c.Check(ctx, retailerName, p.Reference).AsCheck(), true
}

// CheckBatch checks every supported retailer in names concurrently. Names
// without a site are left out of the result.
func (c *Checker) CheckBatch(ctx context.Context, names []string, reference string) map[string]Result {
	var (
		mu  sync.Mutex
		out = map[string]Result{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)
	for _, name := range names {
		if _, ok := c.Lookup(name); !ok {
			continue
		}
		g.Go(func() error {
			r := c.Check(gctx, name, reference)
			mu.Lock()
			out[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Checker) checkSite(ctx context.Context, site Site, reference string) (Result, error) {
	doc, err := c.fetch(ctx, site.BaseURL+fmt.Sprintf(site.SearchPath, url.QueryEscape(reference)))
	if err != nil {
		return Result{}, err
	}
	return ParseSearchPage(site, doc, reference), nil
}

func (c *Checker) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("fetch %s: status %d", u, res.StatusCode)
	}
	return goquery.NewDocumentFromReader(res.Body)
}

// ParseSearchPage reads a site search results page for reference.
func ParseSearchPage(site Site, doc *goquery.Document, reference string) Result {
	out := Result{RetailerName: site.Name, Status: StatusOutOfStock, Message: "Reference not found in search results"}

	cards := doc.Find(site.ProductSelector)
	if cards.Length() == 0 {
		if site.NoResults != nil && site.NoResults.MatchString(doc.Text()) {
			out.Message = "No products found matching reference"
		}
		return out
	}

	ref := strings.ToLower(reference)
	refBare := strings.ReplaceAll(ref, "-", "")
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		text := strings.ToLower(card.Text())
		if !strings.Contains(text, ref) && !strings.Contains(strings.ReplaceAll(text, "-", ""), refBare) {
			return true
		}
		out = readCard(site, card, text)
		return false
	})
	return out
}

func readCard(site Site, card *goquery.Selection, text string) Result {
	r := Result{RetailerName: site.Name}
	if href, ok := card.Find("a[href]").First().Attr("href"); ok && href != "" {
		if strings.HasPrefix(href, "http") {
			r.ProductURL = href
		} else {
			r.ProductURL = site.BaseURL + href
		}
	}
	if m := priceRe.FindStringSubmatch(card.Text()); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			r.Price = &v
		}
	}

	available := r.Price != nil
	if site.Available != nil {
		available = site.Available.MatchString(text)
	}
	switch {
	case site.SoldOut != nil && site.SoldOut.MatchString(text):
		r.Status = StatusOutOfStock
		r.Message = "Listed as sold out"
	case available:
		r.Status = StatusInStock
		r.Message = "Available for purchase"
	default:
		r.Status = StatusCallForAvailability
		r.Message = "Product found but availability unclear"
	}
	return r
}
