package catalog

import (
	"errors"
	"testing"
)

func TestDefault_LoadsEmbeddedCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	p, err := c.Resolve("")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.Reference != "M79930-0007" {
		t.Fatalf("expected default product, got %q", p.Reference)
	}
	if p.FullName != "Tudor Ranger 36mm steel case with Beige domed dial" {
		t.Fatalf("unexpected full name %q", p.FullName)
	}
	if c.Search.ZipCode != "94117" || c.Search.RadiusMiles != 50 {
		t.Fatalf("unexpected search defaults: %+v", c.Search)
	}
}

func TestResolve_UnknownProduct(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := c.Resolve("nope"); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
	if _, err := c.Resolve("m79930-0001"); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
}

func TestParse_RejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
products:
  - reference: A-1
  - reference: a-1
`))
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestParse_RejectsMissingDefault(t *testing.T) {
	_, err := Parse([]byte(`
default: Z-9
products:
  - reference: A-1
`))
	if err == nil {
		t.Fatalf("expected missing default error")
	}
}

func TestParse_KeepsExplicitFullName(t *testing.T) {
	c, err := Parse([]byte(`
products:
  - reference: A-1
    full_name: Custom Name
`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Products[0].FullName != "Custom Name" || c.Default != "A-1" {
		t.Fatalf("unexpected catalog: %+v", c)
	}
}
