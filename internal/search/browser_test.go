package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
)

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) render(_ *cancel.Token, _ string) (string, error) {
	f.calls++
	return f.html, f.err
}

func newTestSource(r renderer) *BrowserSource {
	s := NewBrowserSource(BrowserConfig{JobID: "job-1", TagPrefix: "leadgen"}, nil)
	s.render = r
	return s
}

func TestSearch_ReturnsCandidates(t *testing.T) {
	s := newTestSource(&fakeRenderer{html: jsonLDPage})

	got, err := s.Search(cancel.New(context.Background()), Query{Category: "bakery", Location: "Springfield"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearch_ClosedSourceIsErrBrowserClosed(t *testing.T) {
	s := newTestSource(&fakeRenderer{html: jsonLDPage})
	require.NoError(t, s.Close())

	_, err := s.Search(cancel.New(context.Background()), Query{Category: "bakery"})
	assert.ErrorIs(t, err, ErrBrowserClosed)
}

// closingRenderer closes the source mid-render, the shape of a kill sweep
// landing while a page loads.
type closingRenderer struct {
	src *BrowserSource
}

func (c *closingRenderer) render(_ *cancel.Token, _ string) (string, error) {
	_ = c.src.Close()
	return "", errors.New("signal: killed")
}

func TestSearch_RenderKilledByCloseIsErrBrowserClosed(t *testing.T) {
	s := newTestSource(nil)
	s.render = &closingRenderer{src: s}

	_, err := s.Search(cancel.New(context.Background()), Query{Category: "bakery"})
	assert.ErrorIs(t, err, ErrBrowserClosed)
}

func TestSearch_CancelledTokenShortCircuits(t *testing.T) {
	r := &fakeRenderer{html: jsonLDPage}
	s := newTestSource(r)

	tok := cancel.New(context.Background())
	tok.Cancel()

	_, err := s.Search(tok, Query{Category: "bakery"})
	assert.ErrorIs(t, err, cancel.ErrCancelled)
	assert.Zero(t, r.calls, "no render after cancellation")
}

func TestSearch_CancellationFromRendererPropagates(t *testing.T) {
	s := newTestSource(&fakeRenderer{err: cancel.ErrCancelled})

	_, err := s.Search(cancel.New(context.Background()), Query{Category: "bakery"})
	assert.ErrorIs(t, err, cancel.ErrCancelled)
}
