// Package catalog loads the product catalog used to script calls and
// website lookups.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrUnknownProduct = errors.New("catalog: unknown product")

// Product describes the item being searched for.
type Product struct {
	Reference    string  `yaml:"reference" json:"reference"`
	Brand        string  `yaml:"brand" json:"brand"`
	Model        string  `yaml:"model" json:"model"`
	CaseSize     string  `yaml:"case_size" json:"case_size"`
	CaseMaterial string  `yaml:"case_material" json:"case_material"`
	Dial         string  `yaml:"dial" json:"dial"`
	Price        float64 `yaml:"price" json:"price"`
	FullName     string  `yaml:"full_name" json:"full_name"`
}

// SearchDefaults are the default search settings offered to clients.
type SearchDefaults struct {
	ZipCode     string  `yaml:"zip_code" json:"zip_code"`
	RadiusMiles float64 `yaml:"radius_miles" json:"radius_miles"`
}

type Catalog struct {
	Default  string         `yaml:"default" json:"default"`
	Search   SearchDefaults `yaml:"search" json:"default_search"`
	Products []Product      `yaml:"products" json:"products"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) applyDefaults() {
	for i := range c.Products {
		p := &c.Products[i]
		if p.FullName == "" {
			p.FullName = strings.Join(nonEmpty(p.Brand, p.Model, p.CaseSize, p.CaseMaterial+" case with", p.Dial), " ")
		}
	}
	if c.Default == "" && len(c.Products) > 0 {
		c.Default = c.Products[0].Reference
	}
	if c.Search.RadiusMiles <= 0 {
		c.Search.RadiusMiles = 50
	}
}

func (c *Catalog) validate() error {
	if len(c.Products) == 0 {
		return errors.New("catalog: at least one product is required")
	}
	seen := make(map[string]struct{}, len(c.Products))
	for i, p := range c.Products {
		if p.Reference == "" {
			return fmt.Errorf("catalog: products[%d]: reference is required", i)
		}
		key := strings.ToUpper(p.Reference)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("catalog: duplicate reference %q", p.Reference)
		}
		seen[key] = struct{}{}
	}
	if _, ok := c.Lookup(c.Default); !ok {
		return fmt.Errorf("catalog: default product %q not found", c.Default)
	}
	return nil
}

// Lookup finds a product by reference, case-insensitively.
func (c *Catalog) Lookup(reference string) (Product, bool) {
	for _, p := range c.Products {
		if strings.EqualFold(p.Reference, strings.TrimSpace(reference)) {
			return p, true
		}
	}
	return Product{}, false
}

// Resolve returns the product for reference, or the default product when
// reference is empty.
func (c *Catalog) Resolve(reference string) (Product, error) {
	if strings.TrimSpace(reference) == "" {
		reference = c.Default
	}
	p, ok := c.Lookup(reference)
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, reference)
	}
	return p, nil
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && p != "case with" {
			out = append(out, p)
		}
	}
	return out
}
