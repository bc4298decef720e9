// Package quality decides whether a business's web presence is weak enough to
// make it a sales prospect. Classification is two-tier: a free pattern check
// against known social/site-builder domains, then an external quality API for
// everything else. Scores below the threshold are desirable — the product
// targets businesses with weak websites.
package quality

import (
	"time"

	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
)

const (
	// FixedLowScore is assigned without an API call when a URL matches a
	// low-value pattern, and when the API definitively rejects a site.
	FixedLowScore = 25

	// NeutralScore is returned after the retry budget is exhausted so one
	// flaky URL never stalls the orchestration.
	NeutralScore = 50
)

// Result is the gate's verdict for one URL.
type Result struct {
	URL       string   `json:"url"`
	Score     float64  `json:"score"`
	Subscores *Scores  `json:"subscores,omitempty"`
	Prospect  bool     `json:"prospect"`
	Estimated bool     `json:"estimated"`
	Source    string   `json:"source"` // "no-website", "pattern", "api", "cache", "default"
	Reason    string   `json:"reason,omitempty"`
	Issues    []string `json:"issues,omitempty"`
}

// GateConfig tunes the gate's API retry behavior.
type GateConfig struct {
	// ProspectThreshold: overall scores strictly below it are prospects.
	ProspectThreshold float64
	// InitialDelay is the fixed delay before the first API attempt.
	InitialDelay time.Duration
	// MaxAttempts is the API attempt ceiling.
	MaxAttempts int
	// InitialBackoff doubles after each failed attempt.
	InitialBackoff time.Duration
}

// DefaultGateConfig returns the standard gate tuning.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ProspectThreshold: 60,
		InitialDelay:      time.Second,
		MaxAttempts:       3,
		InitialBackoff:    2 * time.Second,
	}
}

// Gate classifies URLs, caching API results by normalized URL.
type Gate struct {
	analyzer Analyzer
	cache    *Cache
	patterns *PatternSet
	cfg      GateConfig
}

// NewGate creates a Gate. A nil patterns falls back to the embedded defaults.
func NewGate(analyzer Analyzer, cache *Cache, patterns *PatternSet, cfg GateConfig) *Gate {
	if patterns == nil {
		patterns, _ = LoadDefaultPatterns()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	return &Gate{analyzer: analyzer, cache: cache, patterns: patterns, cfg: cfg}
}

// CheapCheck classifies a URL without any network call. The second return
// value is false when the check is inconclusive and the API tier is needed.
func (g *Gate) CheapCheck(website string) (Result, bool) {
	if website == "" {
		return Result{
			Score:     0,
			Prospect:  true,
			Estimated: true,
			Source:    "no-website",
			Reason:    "business has no website",
		}, true
	}

	if kind := g.patterns.Match(website); kind != "" {
		return Result{
			URL:       website,
			Score:     FixedLowScore,
			Prospect:  true,
			Estimated: true,
			Source:    "pattern",
			Reason:    "site hosted on known " + kind + " platform",
		}, true
	}

	return Result{}, false
}

// Evaluate classifies a URL, escalating to the API when the cheap check is
// inconclusive. It returns an error only for cancellation; every API failure
// mode degrades to a usable result.
func (g *Gate) Evaluate(tok *cancel.Token, website string) (*Result, error) {
	if r, decided := g.CheapCheck(website); decided {
		return &r, nil
	}

	normalized := NormalizeURL(website)
	if g.cache != nil {
		if r, ok := g.cache.Get(normalized); ok {
			r.Source = "cache"
			return &r, nil
		}
	}

	// Fixed settle delay before the first attempt; freshly-found sites are
	// often still warming caches on their side.
	if err := tok.Sleep(g.cfg.InitialDelay); err != nil {
		return nil, err
	}

	backoff := g.cfg.InitialBackoff
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		scores, err := g.analyzer.Analyze(tok, website)
		if err == nil {
			r := g.fromScores(website, scores)
			if g.cache != nil {
				g.cache.Set(normalized, *r)
			}
			return r, nil
		}

		if cancel.IsCancellation(err) {
			return nil, cancel.ErrCancelled
		}

		if err == ErrUnanalyzable {
			// Definitive rejection: assume low quality, no retries.
			return &Result{
				URL:       website,
				Score:     FixedLowScore,
				Prospect:  FixedLowScore < g.cfg.ProspectThreshold,
				Estimated: true,
				Source:    "api",
				Reason:    "site could not be analyzed",
				Issues:    []string{"could not be analyzed"},
			}, nil
		}

		zap.L().Warn("quality: analysis attempt failed",
			zap.String("url", website),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < g.cfg.MaxAttempts {
			if err := tok.Sleep(backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}
	}

	// Retry budget exhausted: neutral default so the job keeps moving.
	return &Result{
		URL:       website,
		Score:     NeutralScore,
		Prospect:  NeutralScore < g.cfg.ProspectThreshold,
		Estimated: true,
		Source:    "default",
		Reason:    "quality analysis unavailable",
		Issues:    []string{"analysis unavailable"},
	}, nil
}

func (g *Gate) fromScores(website string, s *Scores) *Result {
	overall := s.Overall()
	return &Result{
		URL:       website,
		Score:     overall,
		Subscores: s,
		Prospect:  overall < g.cfg.ProspectThreshold,
		Source:    "api",
	}
}
