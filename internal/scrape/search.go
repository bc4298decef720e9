package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/pkg/jina"
)

// Hit is a single web-search result.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher fronts the web-search API. Site restricts results to one domain
// when non-empty (used for social-profile discovery).
type Searcher interface {
	Search(ctx context.Context, query, site string) ([]Hit, error)
}

// JinaSearcher implements Searcher on the Jina search API.
type JinaSearcher struct {
	client jina.Client
}

func NewJinaSearcher(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

func (s *JinaSearcher) Search(ctx context.Context, query, site string) ([]Hit, error) {
	var opts []jina.SearchOption
	if site != "" {
		opts = append(opts, jina.WithSiteFilter(site))
	}

	resp, err := s.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "search: %q", query)
	}

	hits := make([]Hit, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return hits, nil
}
