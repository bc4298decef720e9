// Package search produces raw business candidates from map listings. The
// headless browser, its job tag, and all DOM specifics stay behind this
// boundary.
package search

import (
	"errors"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// ErrBrowserClosed signals that the browser behind the source was closed or
// killed. The orchestrator treats it exactly like a cancellation.
var ErrBrowserClosed = errors.New("browser closed")

// Query bounds one location search.
type Query struct {
	Category   string
	Location   string
	Country    string
	MinRating  float64
	MaxResults int
}

// Source returns candidates for a query, in listing order.
type Source interface {
	Search(tok *cancel.Token, q Query) ([]model.Candidate, error)
	Close() error
}
