package geo

import (
	"context"
	"math"
	"sort"

	"stock-finder/internal/directory"
)

const EarthRadiusMiles = 3959

// Haversine returns the great-circle distance in miles between two points
// given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	p1, p2 := rad(lat1), rad(lat2)
	dLat, dLon := rad(lat2-lat1), rad(lon2-lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMiles * 2 * math.Asin(math.Sqrt(a))
}

// Match is a retailer within the search radius.
type Match struct {
	Retailer      directory.Retailer `json:"retailer"`
	DistanceMiles float64            `json:"distance_miles"`
}

// Filter selects retailers near a point.
type Filter struct {
	geocoder Geocoder
}

func NewFilter(g Geocoder) *Filter { return &Filter{geocoder: g} }

// ByZip geocodes zip and returns the retailers within radiusMiles of it,
// nearest first. Retailers without coordinates are placed by their own zip
// code when it resolves; the input slice is not modified.
func (f *Filter) ByZip(ctx context.Context, retailers []directory.Retailer, zip string, radiusMiles float64) ([]Match, Location, error) {
	center, err := f.geocoder.Geocode(ctx, zip)
	if err != nil {
		return nil, Location{}, err
	}

	placed := make([]directory.Retailer, 0, len(retailers))
	for _, r := range retailers {
		if !r.HasCoordinates() && r.ZipCode != "" {
			if loc, err := f.geocoder.Geocode(ctx, r.ZipCode); err == nil {
				lat, lng := loc.Latitude, loc.Longitude
				r.Latitude, r.Longitude = &lat, &lng
			}
		}
		placed = append(placed, r)
	}
	return ByCoordinates(placed, center.Latitude, center.Longitude, radiusMiles), center, nil
}

// ByCoordinates returns the retailers within radiusMiles of (lat, lng),
// nearest first. Retailers without coordinates are skipped.
func ByCoordinates(retailers []directory.Retailer, lat, lng, radiusMiles float64) []Match {
	out := []Match{}
	for _, r := range retailers {
		if !r.HasCoordinates() {
			continue
		}
		d := Haversine(lat, lng, *r.Latitude, *r.Longitude)
		if d <= radiusMiles {
			out = append(out, Match{Retailer: r, DistanceMiles: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMiles < out[j].DistanceMiles })
	return out
}

// Retailers drops the distances from ms.
func Retailers(ms []Match) []directory.Retailer {
	out := make([]directory.Retailer, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Retailer)
	}
	return out
}
