package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"stock-finder/pkg/logger"
)

var ErrZipNotFound = errors.New("geo: could not geocode zip code")

// Location is the center point of a US zip code.
type Location struct {
	ZipCode   string  `json:"zip_code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	State     string  `json:"state"`
}

type Geocoder interface {
	Geocode(ctx context.Context, zip string) (Location, error)
}

const (
	DefaultZippopotamURL = "https://api.zippopotam.us/us"
	DefaultCensusURL     = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
)

type HTTPGeocoderOptions struct {
	ZippopotamURL string
	CensusURL     string
	HTTPClient    *http.Client
	// CacheSize bounds the number of remembered zip codes. Defaults to 1024.
	CacheSize int
}

// HTTPGeocoder resolves zip codes with Zippopotam.us and falls back to the
// US Census geocoder. Successful lookups are cached.
type HTTPGeocoder struct {
	zippopotamURL string
	censusURL     string
	client        *http.Client
	cache         *lru.Cache[string, Location]
}

func NewHTTPGeocoder(opts HTTPGeocoderOptions) (*HTTPGeocoder, error) {
	if opts.ZippopotamURL == "" {
		opts.ZippopotamURL = DefaultZippopotamURL
	}
	if opts.CensusURL == "" {
		opts.CensusURL = DefaultCensusURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	cache, err := lru.New[string, Location](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &HTTPGeocoder{
		zippopotamURL: strings.TrimRight(opts.ZippopotamURL, "/"),
		censusURL:     opts.CensusURL,
		client:        opts.HTTPClient,
		cache:         cache,
	}, nil
}

// NormalizeZip trims zip and keeps at most its first five characters.
func NormalizeZip(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) > 5 {
		zip = zip[:5]
	}
	return zip
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, zip string) (Location, error) {
	zip = NormalizeZip(zip)
	if zip == "" {
		return Location{}, ErrZipNotFound
	}
	if loc, ok := g.cache.Get(zip); ok {
		return loc, nil
	}
	log := logger.From(ctx).With("zip", zip)

	loc, err := g.zippopotam(ctx, zip)
	if err != nil {
		log.Warn("zippopotam lookup failed", "err", err)
		loc, err = g.census(ctx, zip)
	}
	if err != nil {
		log.Warn("census lookup failed", "err", err)
		return Location{}, fmt.Errorf("%w: %s", ErrZipNotFound, zip)
	}
	g.cache.Add(zip, loc)
	return loc, nil
}

func (g *HTTPGeocoder) zippopotam(ctx context.Context, zip string) (Location, error) {
	var body struct {
		Places []struct {
			PlaceName string `json:"place name"`
			State     string `json:"state abbreviation"`
			Latitude  string `json:"latitude"`
			Longitude string `json:"longitude"`
		} `json:"places"`
	}
	if err := g.getJSON(ctx, g.zippopotamURL+"/"+url.PathEscape(zip), &body); err != nil {
		return Location{}, err
	}
	if len(body.Places) == 0 {
		return Location{}, errors.New("no places in response")
	}
	p := body.Places[0]
	lat, err := strconv.ParseFloat(p.Latitude, 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad latitude %q", p.Latitude)
	}
	lng, err := strconv.ParseFloat(p.Longitude, 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad longitude %q", p.Longitude)
	}
	return Location{ZipCode: zip, Latitude: lat, Longitude: lng, City: p.PlaceName, State: p.State}, nil
}

func (g *HTTPGeocoder) census(ctx context.Context, zip string) (Location, error) {
	q := url.Values{}
	q.Set("address", zip)
	q.Set("benchmark", "Public_AR_Current")
	q.Set("format", "json")

	var body struct {
		Result struct {
			AddressMatches []struct {
				Coordinates struct {
					X float64 `json:"x"`
					Y float64 `json:"y"`
				} `json:"coordinates"`
				AddressComponents struct {
					City  string `json:"city"`
					State string `json:"state"`
				} `json:"addressComponents"`
			} `json:"addressMatches"`
		} `json:"result"`
	}
	if err := g.getJSON(ctx, g.censusURL+"?"+q.Encode(), &body); err != nil {
		return Location{}, err
	}
	if len(body.Result.AddressMatches) == 0 {
		return Location{}, errors.New("no address matches")
	}
	m := body.Result.AddressMatches[0]
	return Location{
		ZipCode:   zip,
		Latitude:  m.Coordinates.Y,
		Longitude: m.Coordinates.X,
		City:      m.AddressComponents.City,
		State:     m.AddressComponents.State,
	}, nil
}

func (g *HTTPGeocoder) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
