package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/enrich"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/history"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/joblog"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/oracle"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/procs"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/quality"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/scrape"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/search"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/store"
)

// --- fakes ---

type fakeSource struct {
	candidates []model.Candidate
	err        error
	calls      atomic.Int32
	block      chan struct{}
	closed     atomic.Bool
}

func (f *fakeSource) Search(tok *cancel.Token, q search.Query) ([]model.Candidate, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-tok.Done():
			return nil, cancel.ErrCancelled
		}
	}
	if f.closed.Load() {
		return nil, search.ErrBrowserClosed
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeAnalyzer struct {
	scores *quality.Scores
	calls  atomic.Int32
}

func (f *fakeAnalyzer) Analyze(_ *cancel.Token, _ string) (*quality.Scores, error) {
	f.calls.Add(1)
	return f.scores, nil
}

type fakeOracle struct {
	qual *model.Qualification
}

func (fakeOracle) ExtractFields(_ context.Context, req oracle.ExtractRequest) (*oracle.ExtractedFields, error) {
	return oracle.FallbackExtract(req), nil
}

func (fakeOracle) CrossReference(_ context.Context, req oracle.CrossRefRequest) (*oracle.MergedRecord, error) {
	return oracle.FallbackCrossReference(req), nil
}

func (fakeOracle) AnalyzeBusiness(_ context.Context, req oracle.AnalyzeRequest) (*model.BusinessAnalysis, error) {
	return oracle.FallbackAnalyze(req), nil
}

func (f fakeOracle) QualifyLead(_ context.Context, _ oracle.QualifyRequest) (*model.Qualification, error) {
	if f.qual != nil {
		return f.qual, nil
	}
	return &model.Qualification{Score: 80, Tier: model.TierA, RecommendedChannel: "email"}, nil
}

type nilScraper struct{}

func (nilScraper) Name() string { return "nil" }
func (nilScraper) Scrape(_ context.Context, _ string) (*scrape.Page, error) {
	return &scrape.Page{Text: "placeholder"}, nil
}

type nilSearcher struct{}

func (nilSearcher) Search(_ context.Context, _, _ string) ([]scrape.Hit, error) {
	return nil, nil
}

type fakeLister struct {
	procs []procs.ProcessInfo
}

func (f *fakeLister) List(_ context.Context) ([]procs.ProcessInfo, error) {
	return f.procs, nil
}

type fakeKiller struct {
	killed []int
}

func (f *fakeKiller) Kill(pid int) error {
	f.killed = append(f.killed, pid)
	return nil
}

// --- harness ---

type harness struct {
	store    store.Store
	deps     Deps
	source   *fakeSource
	analyzer *fakeAnalyzer
	lister   *fakeLister
	killer   *fakeKiller
	registry *Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	h := &harness{
		store:    st,
		source:   &fakeSource{},
		analyzer: &fakeAnalyzer{scores: &quality.Scores{Performance: 90, Accessibility: 90, BestPractices: 90, SEO: 90}},
		lister:   &fakeLister{},
		killer:   &fakeKiller{},
	}

	tracker := procs.NewTracker(h.lister, h.killer, st, "leadgen")
	gate := quality.NewGate(h.analyzer, quality.NewCache(time.Hour), nil, quality.GateConfig{
		ProspectThreshold: 60,
		InitialDelay:      time.Millisecond,
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
	})
	pipeline := enrich.New(fakeOracle{}, nilScraper{}, nilSearcher{})

	h.deps = Deps{
		Store:     st,
		Tracker:   tracker,
		Gate:      gate,
		Pipeline:  pipeline,
		History:   history.New(st),
		Logs:      joblog.New(100),
		NewSource: func(string) search.Source { return h.source },
	}
	h.registry = NewRegistry(h.deps)
	return h
}

func (h *harness) scheduleJob(t *testing.T, target int) *model.Job {
	t.Helper()
	job := &model.Job{
		Categories:  []string{"bakery"},
		Locations:   []string{"Springfield"},
		Country:     "us",
		TargetLeads: target,
	}
	require.NoError(t, h.registry.Schedule(context.Background(), job))
	return job
}

func threeCandidates() []model.Candidate {
	return []model.Candidate{
		{Name: "Good Site Bistro", ListingURL: "listing-1", Website: "https://goodsite.example"},
		{Name: "Facebook Bakery", ListingURL: "listing-2", Website: "https://facebook.com/fbbakery", Phone: "555-0100"},
		{Name: "Never Reached Cafe", ListingURL: "listing-3"},
	}
}

// --- tests ---

func TestRun_TargetReachedStopsMidBatch(t *testing.T) {
	h := newHarness(t)
	h.source.candidates = threeCandidates()
	job := h.scheduleJob(t, 1)

	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.LeadsFound)
	assert.Empty(t, got.LastError)
	assert.NotNil(t, got.CompletedAt)

	// Candidate 1 needed the API (rejected, score 90); candidate 2 matched
	// the social pattern and converted; candidate 3 was never evaluated.
	assert.Equal(t, int32(1), h.analyzer.calls.Load())

	rec, err := h.store.GetAnalyzed(context.Background(), "listing-3")
	require.NoError(t, err)
	assert.Nil(t, rec, "candidate after the target must not be processed")

	rec, err = h.store.GetAnalyzed(context.Background(), "listing-2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Converted)
}

func TestRun_RejectedCandidateRecordedNotConverted(t *testing.T) {
	h := newHarness(t)
	h.source.candidates = threeCandidates()[:1] // only the good-website one
	job := h.scheduleJob(t, 1)

	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status, "exhausted search space still completes")
	assert.Zero(t, got.LeadsFound)

	rec, err := h.store.GetAnalyzed(context.Background(), "listing-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Prospect)
	assert.False(t, rec.Converted)
}

func TestRun_OracleTierDDisqualifiesWithoutLead(t *testing.T) {
	h := newHarness(t)
	h.deps.Pipeline = enrich.New(fakeOracle{qual: &model.Qualification{Score: 15, Tier: model.TierD}}, nilScraper{}, nilSearcher{})
	h.registry = NewRegistry(h.deps)
	h.source.candidates = threeCandidates()[1:2] // the pattern-matched prospect
	job := h.scheduleJob(t, 1)

	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status, "disqualification never fails the job")
	assert.Zero(t, got.LeadsFound)

	rec, err := h.store.GetAnalyzed(context.Background(), "listing-2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Prospect, "disqualification overwrites the prospect record")
	assert.False(t, rec.Converted)
	assert.Equal(t, "disqualified by oracle tier", rec.SkipReason)

	leads, err := h.store.ListLeads(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestRun_DedupSkipsPreviouslyRejected(t *testing.T) {
	h := newHarness(t)
	h.source.candidates = threeCandidates()[:1]

	// Seed history as if an earlier job already rejected this business.
	require.NoError(t, h.store.UpsertAnalyzed(context.Background(), model.AnalyzedBusinessRecord{
		Identity: "listing-1", Prospect: false, SkipReason: "website quality above threshold",
	}))

	job := h.scheduleJob(t, 1)
	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	assert.Zero(t, h.analyzer.calls.Load(), "no API budget spent on a known rejection")
}

func TestRun_CancelMidSearch(t *testing.T) {
	h := newHarness(t)
	h.source.candidates = threeCandidates()
	h.source.block = make(chan struct{})
	job := h.scheduleJob(t, 5)

	h.registry.Start(context.Background(), job)

	require.Eventually(t, func() bool { return h.source.calls.Load() > 0 },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.registry.Cancel(context.Background(), job.ID))
	h.registry.Wait()

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, CancelledByUser, got.LastError)
	assert.Zero(t, got.LeadsFound, "no lead persisted after cancellation")
	assert.True(t, h.source.closed.Load(), "browser closed during cleanup")
}

func TestRun_BrowserClosedTreatedAsCancellation(t *testing.T) {
	h := newHarness(t)
	h.source.closed.Store(true)
	job := h.scheduleJob(t, 1)

	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, CancelledByUser, got.LastError)
}

func TestRun_CleanupKillsTaggedProcesses(t *testing.T) {
	h := newHarness(t)
	h.source.candidates = nil
	job := h.scheduleJob(t, 1)

	// A tagged browser process is alive when cleanup sweeps.
	h.lister.procs = []procs.ProcessInfo{
		{PID: 4242, Command: "chromium --headless " + procs.Tag("leadgen", job.ID)},
		{PID: 5555, Command: "unrelated-daemon"},
	}

	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	assert.Equal(t, []int{4242}, h.killer.killed)
}

func TestCancel_IdempotentAndDoubleSafe(t *testing.T) {
	h := newHarness(t)
	h.source.candidates = threeCandidates()
	job := h.scheduleJob(t, 1)

	h.registry.Start(context.Background(), job)
	h.registry.Wait()

	// Job already finished; cancelling now must not flip its status.
	require.NoError(t, h.registry.Cancel(context.Background(), job.ID))
	require.NoError(t, h.registry.Cancel(context.Background(), job.ID))

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Empty(t, got.LastError, "terminal status is first-writer-wins")
	assert.Equal(t, 1, got.LeadsFound)
	assert.Nil(t, h.deps.Logs.Entries(job.ID), "cancel after completion must not recreate the log buffer")
}

func TestCancel_NoLiveRunnerSettlesScheduledJob(t *testing.T) {
	h := newHarness(t)
	job := h.scheduleJob(t, 1)

	require.NoError(t, h.registry.Cancel(context.Background(), job.ID))

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, CancelledByUser, got.LastError)
}

func TestRehydrate_InterruptedRunningJob(t *testing.T) {
	h := newHarness(t)
	job := h.scheduleJob(t, 1)
	_, err := h.store.MarkJobRunning(context.Background(), job.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.store.SaveJobProcs(context.Background(), job.ID, []model.TrackedProcess{
		{PID: 777, JobID: job.ID, Discovery: "spawned"},
	}))

	// The tagged process survived the restart.
	h.lister.procs = []procs.ProcessInfo{
		{PID: 777, Command: "chromium " + procs.Tag("leadgen", job.ID)},
	}

	require.NoError(t, h.registry.Rehydrate(context.Background()))

	got, err := h.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "interrupted by host restart", got.LastError)
	assert.Empty(t, got.Procs, "persisted PIDs cleared by the sweep")
	assert.Equal(t, []int{777}, h.killer.killed)
}

func TestSchedule_Validation(t *testing.T) {
	h := newHarness(t)

	err := h.registry.Schedule(context.Background(), &model.Job{TargetLeads: 0, Categories: []string{"x"}, Locations: []string{"y"}})
	assert.Error(t, err)

	err = h.registry.Schedule(context.Background(), &model.Job{TargetLeads: 1})
	assert.Error(t, err)
}
