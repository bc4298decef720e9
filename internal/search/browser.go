package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/procs"
)

// renderer turns a URL into rendered DOM. The production implementation is a
// tagged headless-browser run; tests inject a fake.
type renderer interface {
	render(tok *cancel.Token, pageURL string) (string, error)
}

// BrowserConfig configures the browser-backed source for one job.
type BrowserConfig struct {
	Executable string
	TagPrefix  string
	JobID      string
}

// Tracker is the slice of the process tracker the source needs.
type Tracker interface {
	RegisterSpawned(ctx context.Context, jobID string, pid int, executable string)
	RegisterByTag(ctx context.Context, jobID string) int
}

// BrowserSource renders map-listing pages in a job-tagged headless browser
// and parses candidates out of the DOM.
type BrowserSource struct {
	cfg     BrowserConfig
	tracker Tracker
	render  renderer

	mu     sync.Mutex
	closed bool
}

// NewBrowserSource builds the production source.
func NewBrowserSource(cfg BrowserConfig, tracker Tracker) *BrowserSource {
	s := &BrowserSource{cfg: cfg, tracker: tracker}
	s.render = &browserRenderer{cfg: cfg, tracker: tracker}
	return s
}

func (s *BrowserSource) Search(tok *cancel.Token, q Query) ([]model.Candidate, error) {
	if s.isClosed() {
		return nil, ErrBrowserClosed
	}
	if tok.Cancelled() {
		return nil, cancel.ErrCancelled
	}

	html, err := s.render.render(tok, listingURL(q))
	if err != nil {
		if cancel.IsCancellation(err) {
			return nil, cancel.ErrCancelled
		}
		// A render that dies because Close killed the process group reports
		// as a browser failure, not a search failure.
		if s.isClosed() {
			return nil, ErrBrowserClosed
		}
		return nil, eris.Wrapf(err, "search: render %s in %s", q.Category, q.Location)
	}

	candidates := parseListings(html, q)
	zap.L().Info("search: location searched",
		zap.String("category", q.Category),
		zap.String("location", q.Location),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// Close marks the source closed. The actual process sweep belongs to the
// process tracker; in-flight renders surface ErrBrowserClosed afterwards.
func (s *BrowserSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *BrowserSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// listingURL builds the map search URL for a query.
func listingURL(q Query) string {
	search := url.PathEscape(q.Category + " in " + q.Location)
	u := fmt.Sprintf("https://www.google.com/maps/search/%s?hl=en", search)
	if q.Country != "" {
		u += "&gl=" + url.QueryEscape(strings.ToLower(q.Country))
	}
	return u
}

// browserRenderer does a one-shot tagged headless render and registers any
// processes the browser spawned under the job's tag.
type browserRenderer struct {
	cfg     BrowserConfig
	tracker Tracker
}

func (r *browserRenderer) render(tok *cancel.Token, pageURL string) (string, error) {
	spec := procs.LaunchSpec{
		Executable: r.cfg.Executable,
		JobID:      r.cfg.JobID,
		TagPrefix:  r.cfg.TagPrefix,
		Args: []string{
			"--headless=new",
			"--disable-gpu",
			"--virtual-time-budget=10000",
			"--timeout=20000",
			"--dump-dom",
			pageURL,
		},
	}

	var sweep sync.WaitGroup
	if r.tracker != nil {
		spec.OnStart = func(pid int) {
			r.tracker.RegisterSpawned(tok.Context(), r.cfg.JobID, pid, r.cfg.Executable)
			sweep.Add(1)
			go func() {
				defer sweep.Done()
				// Sweep for renderer children while the dump holds the
				// process tree alive long enough to be scanned.
				r.tracker.RegisterByTag(tok.Context(), r.cfg.JobID)
			}()
		}
	}

	out, err := procs.RunTagged(tok.Context(), spec)
	sweep.Wait()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
