package directory

import (
	"strings"

	"stock-finder/internal/calls"
)

const (
	TypeOfficialRetailer = "Official Retailer"
	TypeBoutique         = "Tudor Boutique Edition"
)

// Retailer is one store from the brand's retailer directory.
type Retailer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`

	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`

	// Latitude and Longitude are nil when the detail page carried no map data.
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	DetailURL    string `json:"detail_url"`
	RetailerType string `json:"retailer_type"`
}

func (r Retailer) HasPhone() bool { return strings.TrimSpace(r.Phone) != "" }

func (r Retailer) HasCoordinates() bool { return r.Latitude != nil && r.Longitude != nil }

// Target returns the call target for r.
func (r Retailer) Target() calls.Target {
	return calls.Target{DisplayName: r.Name, Phone: r.Phone}
}

// WithPhones keeps the retailers that can be called, in order.
func WithPhones(rs []Retailer) []Retailer {
	out := make([]Retailer, 0, len(rs))
	for _, r := range rs {
		if r.HasPhone() {
			out = append(out, r)
		}
	}
	return out
}
