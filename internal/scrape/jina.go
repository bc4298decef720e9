package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/pkg/jina"
)

// JinaScraper fetches pages through the Jina reader API. It renders
// JavaScript-heavy builder sites that the local scraper cannot.
type JinaScraper struct {
	client jina.Client
}

func NewJinaScraper(client jina.Client) *JinaScraper {
	return &JinaScraper{client: client}
}

func (j *JinaScraper) Name() string { return "jina" }

func (j *JinaScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := j.client.Read(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "jina: scrape")
	}
	if resp.Data.Content == "" {
		return nil, eris.Errorf("jina: empty content for %s", targetURL)
	}
	return &Page{
		URL:   targetURL,
		Title: resp.Data.Title,
		Text:  resp.Data.Content,
	}, nil
}
