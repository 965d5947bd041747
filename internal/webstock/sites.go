package webstock

import "regexp"

// Site describes how to search one retailer website and read its result cards.
type Site struct {
	Name    string
	BaseURL string
	// SearchPath is a format string taking the escaped reference.
	SearchPath string
	// ProductSelector matches product cards on the search page.
	ProductSelector string

	NoResults *regexp.Regexp
	SoldOut   *regexp.Regexp
	// Available marks a card as purchasable. When nil, a listed price does.
	Available *regexp.Regexp

	// Aliases are lowercase names the retailer appears under in the directory.
	Aliases []string
}

var priceRe = regexp.MustCompile(`\$([\d,]+(?:\.\d{2})?)`)

// DefaultSites returns the retailer websites with known search pages.
func DefaultSites() []Site {
	return []Site{
		{
			Name:            "Tourneau",
			BaseURL:         "https://www.tourneau.com",
			SearchPath:      "/search?q=%s",
			ProductSelector: `div[class*="product"]`,
			NoResults:       regexp.MustCompile(`(?i)no results|no products|not found`),
			SoldOut:         regexp.MustCompile(`(?i)out of stock|sold out|unavailable`),
			Available:       regexp.MustCompile(`(?i)add to (cart|bag)|in stock|available`),
			Aliases:         []string{"tourneau"},
		},
		{
			Name:            "J.R. Dunn Jewelers",
			BaseURL:         "https://jrdunn.com",
			SearchPath:      "/search?q=%s&type=product",
			ProductSelector: `div[class*="product"], article[class*="product"]`,
			NoResults:       regexp.MustCompile(`(?i)no results|no products found|0 results`),
			SoldOut:         regexp.MustCompile(`(?i)sold out|out of stock`),
			Aliases:         []string{"j.r. dunn", "j.r. dunn jewelers", "jr dunn"},
		},
		{
			Name:            "Westime",
			BaseURL:         "https://westime.com",
			SearchPath:      "/search?q=%s",
			ProductSelector: `div[class*="product"], li[class*="product"], div[class*="grid-item"], li[class*="grid-item"]`,
			NoResults:       regexp.MustCompile(`(?i)no results|no products|sorry`),
			SoldOut:         regexp.MustCompile(`(?i)sold out|out of stock|inquire`),
			Aliases:         []string{"westime"},
		},
		{
			Name:            "Fink's Jewelers",
			BaseURL:         "https://www.finks.com",
			SearchPath:      "/search?q=%s&type=product",
			ProductSelector: `div[class*="product"], article[class*="product"]`,
			NoResults:       regexp.MustCompile(`(?i)no results|no products|0 results`),
			SoldOut:         regexp.MustCompile(`(?i)sold out|out of stock`),
			Aliases:         []string{"fink's", "finks", "fink's jewelers"},
		},
		{
			Name:            "The 1916 Company",
			BaseURL:         "https://www.the1916company.com",
			SearchPath:      "/search?q=%s",
			ProductSelector: `div[class*="product"], article[class*="product"], li[class*="product"], div[class*="item"], article[class*="item"], li[class*="item"]`,
			NoResults:       regexp.MustCompile(`(?i)no results|no products|sorry`),
			SoldOut:         regexp.MustCompile(`(?i)sold out|out of stock|unavailable`),
			Aliases:         []string{"the 1916 company", "1916 company"},
		},
	}
}
