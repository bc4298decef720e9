// Package scrape fetches business websites and social pages as plaintext for
// the enrichment pipeline, and fronts the web-search API.
package scrape

import "context"

// Page holds a scraped page reduced to text.
type Page struct {
	URL   string
	Title string
	Text  string
	// Links are absolute anchor hrefs found on the page, used to discover
	// social profiles and contact links.
	Links []string
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Name() string
}
