package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stock-finder/internal/audit"
	"stock-finder/internal/auth"
	"stock-finder/internal/calls"
	"stock-finder/internal/catalog"
	"stock-finder/internal/directory"
	"stock-finder/internal/geo"
	"stock-finder/internal/inventory"
	"stock-finder/internal/jobs"
	"stock-finder/internal/orchestrator"
	"stock-finder/internal/webstock"
)

type fakeGeocoder map[string]geo.Location

func (g fakeGeocoder) Geocode(_ context.Context, zip string) (geo.Location, error) {
	if loc, ok := g[zip]; ok {
		return loc, nil
	}
	return geo.Location{}, geo.ErrZipNotFound
}

type staticDirectory []directory.Retailer

func (d staticDirectory) GetOrLoad(context.Context) ([]directory.Retailer, error) {
	return d, nil
}

type stockDialer struct{}

func (stockDialer) PlaceCall(_ context.Context, t calls.Target) calls.Result {
	return calls.Result{
		TargetName:  t.DisplayName,
		TargetPhone: t.Phone,
		Status:      inventory.StatusInStock,
		Transcript:  "yes we have it in stock",
	}
}

func retailerAt(name, phone string, lat, lng float64) directory.Retailer {
	return directory.Retailer{Name: name, Phone: phone, Latitude: &lat, Longitude: &lng}
}

func testHandlers(t *testing.T, retailers []directory.Retailer) (Handlers, *audit.MemoryRepo) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	repo := audit.NewMemoryRepo(0)
	svc := orchestrator.NewService(nil, func(catalog.Product) orchestrator.Dialer { return stockDialer{} }, orchestrator.Options{
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	return Handlers{
		Catalog:   cat,
		Directory: staticDirectory(retailers),
		Geo:       geo.NewFilter(fakeGeocoder{"94117": {ZipCode: "94117", Latitude: 37.77, Longitude: -122.44}}),
		Calls:     svc,
		Websites:  webstock.NewChecker(webstock.Options{Sites: []webstock.Site{}}),
		Audit:     audit.NewService(repo),
	}, repo
}

func newRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "op-1", "operator"))
		c.Next()
	})
	r.GET("/api/health", h.Health)
	r.GET("/api/products", h.Products)
	r.POST("/api/search", h.Search)
	r.POST("/api/call", h.StartCalls)
	r.GET("/api/call/:job_id", h.GetCallJob)
	r.POST("/api/call/single", h.SingleCall)
	r.POST("/api/website-stock", h.WebsiteStock)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthAndProducts(t *testing.T) {
	h, _ := testHandlers(t, nil)
	r := newRouter(h)

	if w := do(t, r, http.MethodGet, "/api/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	w := do(t, r, http.MethodGet, "/api/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("products: expected 200, got %d", w.Code)
	}
	var out struct {
		Default  string            `json:"default"`
		Products []catalog.Product `json:"products"`
	}
	decode(t, w, &out)
	if out.Default == "" || len(out.Products) == 0 {
		t.Fatalf("expected catalog in response, got %+v", out)
	}
}

func TestSearch_NearestFirstAndPaged(t *testing.T) {
	var rs []directory.Retailer
	for i := 25; i > 0; i-- {
		phone := ""
		if i%2 == 0 {
			phone = fmt.Sprintf("212555%04d", i)
		}
		rs = append(rs, retailerAt(fmt.Sprintf("Store %02d", i), phone, 37.77+float64(i)*0.01, -122.44))
	}
	rs = append(rs, retailerAt("Far Away", "2125559999", 40.71, -74.0))

	h, _ := testHandlers(t, rs)
	w := do(t, newRouter(h), http.MethodPost, "/api/search", gin.H{"zip_code": "94117", "radius_miles": 50})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Total     int            `json:"total_retailers"`
		WithPhone int            `json:"with_phone"`
		Retailers []retailerView `json:"retailers"`
		HasMore   bool           `json:"has_more"`
	}
	decode(t, w, &out)
	if out.Total != 25 || !out.HasMore || len(out.Retailers) != 20 {
		t.Fatalf("expected 25 total, 20 returned with more, got total=%d len=%d more=%v", out.Total, len(out.Retailers), out.HasMore)
	}
	if out.WithPhone != 12 {
		t.Fatalf("expected 12 with phone, got %d", out.WithPhone)
	}
	if out.Retailers[0].Name != "Store 01" {
		t.Fatalf("expected nearest first, got %s", out.Retailers[0].Name)
	}
}

func TestSearch_BadInput(t *testing.T) {
	h, _ := testHandlers(t, nil)
	r := newRouter(h)

	if w := do(t, r, http.MethodPost, "/api/search", gin.H{"zip_code": "00000"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown zip: expected 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/search", gin.H{"radius_miles": 10}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing zip: expected 400, got %d", w.Code)
	}
}

func TestStartCalls_NoPhonesIs404(t *testing.T) {
	h, _ := testHandlers(t, []directory.Retailer{retailerAt("Silent", "", 37.78, -122.44)})
	w := do(t, newRouter(h), http.MethodPost, "/api/call", gin.H{"zip_code": "94117"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStartCalls_RunsBatchAndAudits(t *testing.T) {
	rs := []directory.Retailer{
		retailerAt("Near", "2125550001", 37.78, -122.44),
		retailerAt("Middle", "2125550002", 37.80, -122.44),
		retailerAt("Farther", "2125550003", 37.90, -122.44),
	}
	h, repo := testHandlers(t, rs)
	r := newRouter(h)

	w := do(t, r, http.MethodPost, "/api/call", gin.H{"zip_code": "94117", "max_calls": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var started struct {
		JobID      string `json:"job_id"`
		TotalCalls int    `json:"total_calls"`
	}
	decode(t, w, &started)
	if started.JobID == "" || started.TotalCalls != 2 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	h.Calls.Wait()

	w = do(t, r, http.MethodGet, "/api/call/"+started.JobID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view jobs.View
	decode(t, w, &view)
	if view.Status != jobs.StatusCompleted || view.Completed != 2 || len(view.Results) != 2 {
		t.Fatalf("unexpected job view: %+v", view)
	}
	if view.Results[0].TargetName != "Near" || view.Summary == nil || len(view.Summary.InStockRetailers) != 2 {
		t.Fatalf("expected nearest called first and summary attached: %+v", view)
	}

	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeBatchStarted || evs[0].JobID != started.JobID || evs[0].ActorOperatorID != "op-1" {
		t.Fatalf("unexpected audit events: %+v", evs)
	}
}

func TestGetCallJob_Unknown(t *testing.T) {
	h, _ := testHandlers(t, nil)
	if w := do(t, newRouter(h), http.MethodGet, "/api/call/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSingleCall(t *testing.T) {
	h, repo := testHandlers(t, nil)
	r := newRouter(h)

	if w := do(t, r, http.MethodPost, "/api/call/single", gin.H{"name": "Store"}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing phone: expected 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/call/single", gin.H{"name": "Store", "phone": "2125550001", "product": "nope"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown product: expected 400, got %d", w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/call/single", gin.H{"name": "Store", "phone": "2125550001"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res calls.Result
	decode(t, w, &res)
	if res.Status != inventory.StatusInStock || res.Summary == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if evs := repo.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeSingleCall {
		t.Fatalf("expected single_call audit event, got %+v", evs)
	}
}

func TestWebsiteStock_UnsupportedRetailers(t *testing.T) {
	h, _ := testHandlers(t, nil)
	r := newRouter(h)

	if w := do(t, r, http.MethodPost, "/api/website-stock", gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty list: expected 400, got %d", w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/website-stock", gin.H{"retailers": []string{"Corner Shop"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Results []webstock.Result `json:"results"`
	}
	decode(t, w, &out)
	if len(out.Results) != 1 || out.Results[0].Status != webstock.StatusNoScraper {
		t.Fatalf("expected no_scraper, got %+v", out.Results)
	}
}
