package httpapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"stock-finder/internal/audit"
	"stock-finder/internal/auth"
	"stock-finder/internal/calls"
	"stock-finder/internal/catalog"
	"stock-finder/internal/directory"
	"stock-finder/internal/geo"
	"stock-finder/internal/jobs"
	"stock-finder/internal/orchestrator"
	"stock-finder/internal/webstock"
	"stock-finder/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// searchPageSize caps the retailers returned by Search.
	searchPageSize  = 20
	defaultMaxCalls = 5
)

// RetailerSource provides the full retailer directory.
type RetailerSource interface {
	GetOrLoad(ctx context.Context) ([]directory.Retailer, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Catalog   *catalog.Catalog
	Directory RetailerSource
	Geo       *geo.Filter
	Calls     *orchestrator.Service
	Websites  *webstock.Checker
	// Audit is optional; failures are logged and never block a call.
	Audit *audit.Service

	CallDelay       time.Duration
	WebsiteFallback bool
	Now             func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": h.now().UTC()})
}

// Products returns the catalog and the default search settings.
func (h Handlers) Products(c *gin.Context) {
	if h.Catalog == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "catalog not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"default":        h.Catalog.Default,
		"products":       h.Catalog.Products,
		"default_search": h.Catalog.Search,
	})
}

type searchRequest struct {
	ZipCode     string  `json:"zip_code"`
	RadiusMiles float64 `json:"radius_miles"`
}

type retailerView struct {
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	ZipCode       string  `json:"zip_code"`
	Phone         string  `json:"phone"`
	Website       string  `json:"website"`
	DistanceMiles float64 `json:"distance_miles"`
	RetailerType  string  `json:"retailer_type"`
	HasPhone      bool    `json:"has_phone"`
}

func viewOf(m geo.Match) retailerView {
	r := m.Retailer
	return retailerView{
		Name:          r.Name,
		Address:       r.Address,
		City:          r.City,
		State:         r.State,
		ZipCode:       r.ZipCode,
		Phone:         r.Phone,
		Website:       r.Website,
		DistanceMiles: round1(m.DistanceMiles),
		RetailerType:  r.RetailerType,
		HasPhone:      r.HasPhone(),
	}
}

// Search lists retailers near a zip code, nearest first.
func (h Handlers) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	matches, ok := h.nearby(c, req.ZipCode, req.RadiusMiles)
	if !ok {
		return
	}

	views := make([]retailerView, 0, len(matches))
	withPhone := 0
	for _, m := range matches {
		v := viewOf(m)
		if v.HasPhone {
			withPhone++
		}
		views = append(views, v)
	}
	page := views
	if len(page) > searchPageSize {
		page = page[:searchPageSize]
	}
	c.JSON(http.StatusOK, gin.H{
		"zip_code":        req.ZipCode,
		"radius_miles":    h.radius(req.RadiusMiles),
		"total_retailers": len(views),
		"with_phone":      withPhone,
		"retailers":       page,
		"has_more":        len(views) > searchPageSize,
	})
}

type startCallsRequest struct {
	ZipCode     string  `json:"zip_code"`
	RadiusMiles float64 `json:"radius_miles"`
	MaxCalls    int     `json:"max_calls"`
	Product     string  `json:"product"`
}

// StartCalls starts a background batch against the callable retailers near a
// zip code. Progress is read back with GetCallJob.
func (h Handlers) StartCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req startCallsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	product, ok := h.product(c, req.Product)
	if !ok {
		return
	}
	if req.MaxCalls < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "max_calls must not be negative"})
		return
	}
	if req.MaxCalls == 0 {
		req.MaxCalls = defaultMaxCalls
	}

	matches, ok := h.nearby(c, req.ZipCode, req.RadiusMiles)
	if !ok {
		return
	}
	var callable []geo.Match
	for _, m := range matches {
		if m.Retailer.HasPhone() {
			callable = append(callable, m)
		}
	}
	if len(callable) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No retailers with phone numbers found in this area"})
		return
	}
	if len(callable) > req.MaxCalls {
		callable = callable[:req.MaxCalls]
	}

	targets := make([]calls.Target, 0, len(callable))
	listed := make([]gin.H, 0, len(callable))
	for _, m := range callable {
		targets = append(targets, m.Retailer.Target())
		listed = append(listed, gin.H{"name": m.Retailer.Name, "phone": m.Retailer.Phone, "distance": round1(m.DistanceMiles)})
	}

	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	jobID, err := h.Calls.Start(ctx, targets, orchestrator.BatchOptions{
		Delay:           h.CallDelay,
		Product:         product,
		WebsiteFallback: h.WebsiteFallback,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrNoTargets) {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	h.audit(c, func(ctx context.Context, a audit.Actor) error {
		return h.Audit.LogBatchStarted(ctx, a, jobID, product.Reference, len(targets))
	})

	c.JSON(http.StatusOK, gin.H{
		"job_id":      jobID,
		"status":      "started",
		"total_calls": len(targets),
		"retailers":   listed,
	})
}

// GetCallJob returns the progress of a batch.
func (h Handlers) GetCallJob(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	j, err := h.Calls.Jobs().Get(c.Param("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "job lookup failed"})
		return
	}
	c.JSON(http.StatusOK, jobs.ViewOf(j))
}

type singleCallRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Product string `json:"product"`
}

// SingleCall calls one store and waits for the refined result.
func (h Handlers) SingleCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req singleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.Phone) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name and phone required"})
		return
	}
	product, ok := h.product(c, req.Product)
	if !ok {
		return
	}
	h.audit(c, func(ctx context.Context, a audit.Actor) error {
		return h.Audit.LogSingleCall(ctx, a, req.Name, product.Reference)
	})

	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	res := h.Calls.CallOne(ctx, calls.Target{DisplayName: req.Name, Phone: req.Phone}, product)
	c.JSON(http.StatusOK, res)
}

type websiteStockRequest struct {
	Retailers []string `json:"retailers"`
	Product   string   `json:"product"`
}

// WebsiteStock checks retailer websites for the product. Retailers without a
// known website search are reported as no_scraper.
func (h Handlers) WebsiteStock(c *gin.Context) {
	if h.Websites == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "website checks not configured"})
		return
	}
	var req websiteStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Retailers) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "retailers required"})
		return
	}
	product, ok := h.product(c, req.Product)
	if !ok {
		return
	}

	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	found := h.Websites.CheckBatch(ctx, req.Retailers, product.Reference)
	results := make([]webstock.Result, 0, len(req.Retailers))
	for _, name := range req.Retailers {
		if r, ok := found[name]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, h.Websites.Check(ctx, name, product.Reference))
	}
	c.JSON(http.StatusOK, gin.H{
		"reference": product.Reference,
		"results":   results,
		"supported": h.Websites.Supported(),
	})
}

// nearby resolves the retailers around zip. It writes the error response and
// returns false on failure.
func (h Handlers) nearby(c *gin.Context, zip string, radius float64) ([]geo.Match, bool) {
	if h.Directory == nil || h.Geo == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "retailer search not configured"})
		return nil, false
	}
	if strings.TrimSpace(zip) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "zip_code required"})
		return nil, false
	}
	if radius < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "radius_miles must not be negative"})
		return nil, false
	}
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))

	retailers, err := h.Directory.GetOrLoad(ctx)
	if err != nil {
		logger.FromGin(c).Error("retailer directory unavailable", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "retailer directory unavailable"})
		return nil, false
	}
	matches, _, err := h.Geo.ByZip(ctx, retailers, zip, h.radius(radius))
	if err != nil {
		if errors.Is(err, geo.ErrZipNotFound) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Could not geocode zip code " + zip})
			return nil, false
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "geocoding failed"})
		return nil, false
	}
	return matches, true
}

func (h Handlers) radius(r float64) float64 {
	if r > 0 {
		return r
	}
	if h.Catalog != nil {
		return h.Catalog.Search.RadiusMiles
	}
	return 50
}

func (h Handlers) product(c *gin.Context, reference string) (catalog.Product, bool) {
	if h.Catalog == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "catalog not configured"})
		return catalog.Product{}, false
	}
	p, err := h.Catalog.Resolve(reference)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return catalog.Product{}, false
	}
	return p, true
}

// audit records an operator action. It is best-effort.
func (h Handlers) audit(c *gin.Context, fn func(ctx context.Context, a audit.Actor) error) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	operatorID, _ := auth.OperatorID(ctx)
	role, _ := auth.Role(ctx)
	a := audit.Actor{OperatorID: operatorID, Role: role, IP: c.ClientIP()}
	if err := fn(ctx, a); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
