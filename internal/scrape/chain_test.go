package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScraper struct {
	name  string
	page  *Page
	err   error
	calls int
}

func (s *stubScraper) Name() string { return s.name }

func (s *stubScraper) Scrape(_ context.Context, _ string) (*Page, error) {
	s.calls++
	return s.page, s.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubScraper{name: "first", page: &Page{Text: "from first"}}
	second := &stubScraper{name: "second", page: &Page{Text: "from second"}}

	page, err := NewChain(first, second).Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "from first", page.Text)
	assert.Zero(t, second.calls)
}

func TestChain_FallsThroughOnError(t *testing.T) {
	first := &stubScraper{name: "first", err: errors.New("blocked (cloudflare)")}
	second := &stubScraper{name: "second", page: &Page{Text: "from second"}}

	page, err := NewChain(first, second).Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "from second", page.Text)
}

func TestChain_AllFail(t *testing.T) {
	first := &stubScraper{name: "first", err: errors.New("boom")}
	second := &stubScraper{name: "second", err: errors.New("also boom")}

	_, err := NewChain(first, second).Scrape(context.Background(), "https://example.com")
	assert.Error(t, err)
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	first := &stubScraper{name: "first", err: errors.New("boom")}
	second := &stubScraper{name: "second", page: &Page{Text: "never reached"}}
	cancelFn()

	_, err := NewChain(first, second).Scrape(ctx, "https://example.com")
	require.Error(t, err)
	assert.Zero(t, second.calls, "chain must not try further scrapers after cancellation")
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain().Scrape(context.Background(), "https://example.com")
	assert.Error(t, err)
}
