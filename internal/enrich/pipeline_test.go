package enrich

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/oracle"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/scrape"
)

type fakeOracle struct {
	extractErr, crossErr, analyzeErr, qualifyErr error

	extractCalls, crossCalls, analyzeCalls, qualifyCalls atomic.Int32
	lastQualify                                          oracle.QualifyRequest
}

func (f *fakeOracle) ExtractFields(_ context.Context, req oracle.ExtractRequest) (*oracle.ExtractedFields, error) {
	f.extractCalls.Add(1)
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return &oracle.ExtractedFields{
		Emails:     []string{"orders@springfieldbakery.com"},
		Confidence: 0.8,
	}, nil
}

func (f *fakeOracle) CrossReference(_ context.Context, req oracle.CrossRefRequest) (*oracle.MergedRecord, error) {
	f.crossCalls.Add(1)
	if f.crossErr != nil {
		return nil, f.crossErr
	}
	return &oracle.MergedRecord{
		SameBusiness: true,
		Name:         req.Business.Name,
		Phones:       []model.Contact{{Value: "(555) 010-0199", Source: "listing", Confidence: 0.9}},
		Confidence:   0.85,
	}, nil
}

func (f *fakeOracle) AnalyzeBusiness(_ context.Context, req oracle.AnalyzeRequest) (*model.BusinessAnalysis, error) {
	f.analyzeCalls.Add(1)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &model.BusinessAnalysis{Summary: "a local bakery", WebsiteVerdict: "weak site", Confidence: 0.9}, nil
}

func (f *fakeOracle) QualifyLead(_ context.Context, req oracle.QualifyRequest) (*model.Qualification, error) {
	f.qualifyCalls.Add(1)
	f.lastQualify = req
	if f.qualifyErr != nil {
		return nil, f.qualifyErr
	}
	return &model.Qualification{Score: 81, Tier: model.TierA, RecommendedChannel: "email"}, nil
}

type scriptedScraper struct {
	pages map[string]*scrape.Page
	err   error
	calls atomic.Int32
}

func (s *scriptedScraper) Name() string { return "scripted" }

func (s *scriptedScraper) Scrape(_ context.Context, url string) (*scrape.Page, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.pages[url]; ok {
		return p, nil
	}
	return nil, errors.New("no such page")
}

type scriptedSearcher struct {
	hits  []scrape.Hit
	err   error
	calls atomic.Int32
	block chan struct{} // when set, Search waits for it before returning
}

func (s *scriptedSearcher) Search(ctx context.Context, _, _ string) ([]scrape.Hit, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func testCandidate() model.Candidate {
	return model.Candidate{
		Name:    "Springfield Bakery",
		Website: "https://springfieldbakery.example",
		Phone:   "(555) 010-0199",
		Rating:  4.5,
	}
}

func testJobContext() model.JobContext {
	return model.JobContext{JobID: "job-1", Location: "Springfield", Category: "bakery", Country: "us"}
}

func newTestPipeline() (*Pipeline, *fakeOracle, *scriptedScraper, *scriptedSearcher) {
	o := &fakeOracle{}
	sc := &scriptedScraper{pages: map[string]*scrape.Page{
		"https://springfieldbakery.example": {Text: "Fresh bread daily. Call (555) 010-0199."},
	}}
	se := &scriptedSearcher{hits: []scrape.Hit{
		{Title: "Springfield Bakery", URL: "https://www.facebook.com/springfieldbakery", Snippet: "bakery page"},
	}}
	return New(o, sc, se), o, sc, se
}

func TestEnrich_HappyPath(t *testing.T) {
	p, o, sc, _ := newTestPipeline()

	lead, err := p.Enrich(cancel.New(context.Background()), testCandidate(), testJobContext(), 30)
	require.NoError(t, err)

	assert.Equal(t, "Springfield Bakery", lead.Name)
	assert.Equal(t, model.TierA, lead.Qualification.Tier)
	assert.InDelta(t, 30, lead.QualityScore, 0.01)
	assert.Equal(t, "us", lead.Country)

	// Extraction emails folded into the cross-referenced record.
	require.Len(t, lead.Emails, 1)
	assert.Equal(t, "orders@springfieldbakery.com", lead.Emails[0].Value)
	require.Len(t, lead.Phones, 1)

	assert.Equal(t, int32(1), o.extractCalls.Load())
	assert.Equal(t, int32(1), o.crossCalls.Load())
	assert.Equal(t, int32(1), o.analyzeCalls.Load())
	assert.Equal(t, int32(1), o.qualifyCalls.Load())

	// Website scrape plus the opportunistic social scrape.
	assert.Equal(t, int32(2), sc.calls.Load())

	assert.Equal(t, "listing", lead.Provenance["name"].Source)
}

func TestEnrich_QualifySeesAnalysis(t *testing.T) {
	p, o, _, _ := newTestPipeline()

	_, err := p.Enrich(cancel.New(context.Background()), testCandidate(), testJobContext(), 30)
	require.NoError(t, err)
	assert.Equal(t, "a local bakery", o.lastQualify.Analysis.Summary,
		"qualification must receive the analysis output")
}

func TestEnrich_FailedSubTasksAreBestEffort(t *testing.T) {
	o := &fakeOracle{}
	sc := &scriptedScraper{err: errors.New("connection refused")}
	se := &scriptedSearcher{err: errors.New("search down")}
	p := New(o, sc, se)

	lead, err := p.Enrich(cancel.New(context.Background()), testCandidate(), testJobContext(), 30)
	require.NoError(t, err, "failed sub-tasks must not abort the candidate")
	assert.Equal(t, model.TierA, lead.Qualification.Tier)
}

func TestEnrich_SingleOracleFailureDegradesToFallback(t *testing.T) {
	p, o, _, _ := newTestPipeline()
	o.qualifyErr = errors.New("api error 500")

	lead, err := p.Enrich(cancel.New(context.Background()), testCandidate(), testJobContext(), 30)
	require.NoError(t, err)
	assert.Equal(t, "rule-based scoring from measured signals", lead.Qualification.Reasoning)
	assert.True(t, model.ValidTier(lead.Qualification.Tier))
}

func TestEnrich_ParseFailureDegradesToFallback(t *testing.T) {
	p, o, _, _ := newTestPipeline()
	o.extractErr = &oracle.ParseError{Op: "extract", Err: errors.New("no JSON object found")}

	lead, err := p.Enrich(cancel.New(context.Background()), testCandidate(), testJobContext(), 30)
	require.NoError(t, err)
	// Fallback extraction still harvests the phone from the scraped text.
	require.NotEmpty(t, lead.Phones)
}

func TestEnrich_CancelledBeforeStart(t *testing.T) {
	p, o, sc, se := newTestPipeline()
	tok := cancel.New(context.Background())
	tok.Cancel()

	_, err := p.Enrich(tok, testCandidate(), testJobContext(), 30)
	assert.ErrorIs(t, err, cancel.ErrCancelled)
	assert.Zero(t, o.extractCalls.Load())
	assert.Zero(t, sc.calls.Load())
	assert.Zero(t, se.calls.Load())
}

func TestEnrich_CancellationMidFanOutPropagates(t *testing.T) {
	p, o, _, se := newTestPipeline()
	se.block = make(chan struct{})

	tok := cancel.New(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Enrich(tok, testCandidate(), testJobContext(), 30)
		done <- err
	}()

	tok.Cancel()
	close(se.block)

	err := <-done
	assert.True(t, cancel.IsCancellation(err), "got %v", err)
	assert.Zero(t, o.qualifyCalls.Load(), "no oracle spend after cancellation")
}

func TestEnrich_OracleCancellationNeverSwallowed(t *testing.T) {
	p, o, _, _ := newTestPipeline()
	o.analyzeErr = cancel.ErrCancelled

	_, err := p.Enrich(cancel.New(context.Background()), testCandidate(), testJobContext(), 30)
	assert.ErrorIs(t, err, cancel.ErrCancelled)
	assert.Zero(t, o.qualifyCalls.Load())
}

func TestEnrich_NoWebsiteSkipsWebsiteScrape(t *testing.T) {
	p, _, sc, _ := newTestPipeline()

	cand := testCandidate()
	cand.Website = ""

	_, err := p.Enrich(cancel.New(context.Background()), cand, testJobContext(), 0)
	require.NoError(t, err)
	// Only the opportunistic social scrape runs.
	assert.Equal(t, int32(1), sc.calls.Load())
}

func TestIsSocialURL(t *testing.T) {
	assert.True(t, isSocialURL("https://www.facebook.com/springfieldbakery"))
	assert.True(t, isSocialURL("https://instagram.com/bakery"))
	assert.False(t, isSocialURL("https://example.com/facebook.com-fans"))
	assert.False(t, isSocialURL("mailto:a@facebook.com"))
}

func TestHitsText(t *testing.T) {
	text := hitsText([]scrape.Hit{
		{Title: "A", URL: "https://a.example", Snippet: "alpha"},
		{Title: "B", URL: "https://b.example", Snippet: "beta"},
	})
	assert.True(t, strings.Contains(text, "alpha") && strings.Contains(text, "beta"))
}
