package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/resilience"
)

// ErrUnanalyzable is the API's definitive "could not analyze this site"
// rejection (HTTP 400). It is permanent: callers short-circuit to a fixed
// low-quality classification and never retry.
var ErrUnanalyzable = errors.New("site could not be analyzed")

// Scores holds the four 0-100 sub-scores returned by the quality API.
type Scores struct {
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
	BestPractices float64 `json:"best_practices"`
	SEO           float64 `json:"seo"`
}

// Overall blends the four sub-scores with equal weights.
func (s Scores) Overall() float64 {
	return (s.Performance + s.Accessibility + s.BestPractices + s.SEO) / 4
}

// Analyzer is the page-quality API boundary. Implementations return Scores,
// ErrUnanalyzable for a definitive rejection, or a transient error.
type Analyzer interface {
	Analyze(tok *cancel.Token, pageURL string) (*Scores, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound calls per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// Client calls a PageSpeed-shaped quality analysis API.
type Client struct {
	key     string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a quality API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		key:     apiKey,
		baseURL: "https://www.googleapis.com/pagespeedonline/v5",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse mirrors the subset of the lighthouse result we consume.
type apiResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance   categoryScore `json:"performance"`
			Accessibility categoryScore `json:"accessibility"`
			BestPractices categoryScore `json:"best-practices"`
			SEO           categoryScore `json:"seo"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

type categoryScore struct {
	Score float64 `json:"score"` // 0.0-1.0
}

// Analyze runs one analysis call. The job token's context is wired straight
// into the HTTP request so cancellation aborts the call natively.
func (c *Client) Analyze(tok *cancel.Token, pageURL string) (*Scores, error) {
	if err := tok.Err(); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(tok.Context()); err != nil {
			return nil, cancel.ErrCancelled
		}
	}

	endpoint := fmt.Sprintf("%s/runPagespeed?url=%s&category=performance&category=accessibility&category=best-practices&category=seo",
		c.baseURL, url.QueryEscape(pageURL))
	if c.key != "" {
		endpoint += "&key=" + url.QueryEscape(c.key)
	}

	req, err := http.NewRequestWithContext(tok.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "quality: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if tok.Cancelled() {
			return nil, cancel.ErrCancelled
		}
		return nil, resilience.NewTransientError(eris.Wrap(err, "quality: request failed"), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrUnanalyzable
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewTransientError(eris.New("quality: rate limited"), http.StatusTooManyRequests)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.NewTransientError(
			eris.Errorf("quality: unexpected status %d", resp.StatusCode), resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "quality: decode response"), 0)
	}

	cats := body.LighthouseResult.Categories
	return &Scores{
		Performance:   cats.Performance.Score * 100,
		Accessibility: cats.Accessibility.Score * 100,
		BestPractices: cats.BestPractices.Score * 100,
		SEO:           cats.SEO.Score * 100,
	}, nil
}
