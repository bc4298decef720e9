package job

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/store"
)

// Registry tracks live runners and is the external control surface: schedule,
// start, cancel. Cancellation works even for jobs it has never seen, by
// falling back to the persisted tag sweep.
type Registry struct {
	deps Deps

	mu   sync.Mutex
	live map[string]*Runner
	wg   sync.WaitGroup
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps: deps,
		live: map[string]*Runner{},
	}
}

// Schedule persists a new job in the scheduled state.
func (g *Registry) Schedule(ctx context.Context, job *model.Job) error {
	if job.TargetLeads <= 0 {
		return eris.New("job: target lead count must be positive")
	}
	if len(job.Categories) == 0 || len(job.Locations) == 0 {
		return eris.New("job: at least one category and one location required")
	}
	if err := g.deps.Store.CreateJob(ctx, job); err != nil {
		return err
	}
	g.deps.Logs.Append(job.ID, "info", "job scheduled", nil)
	return nil
}

// Start launches a runner for the job unless one is already live.
func (g *Registry) Start(ctx context.Context, job *model.Job) {
	g.mu.Lock()
	if _, running := g.live[job.ID]; running {
		g.mu.Unlock()
		return
	}
	runner := NewRunner(g.deps, job)
	g.live[job.ID] = runner
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			delete(g.live, job.ID)
			g.mu.Unlock()
			g.deps.Logs.Remove(job.ID)
		}()
		runner.Run(ctx)
	}()
}

// Cancel stops a job. Idempotent and safe to race with the runner's own
// completion: the token flip and the process sweep are both idempotent, and
// the terminal-status write is first-writer-wins. It works for jobs with no
// live runner (for example after a host restart) because the sweep re-derives
// the process list from the persisted tag.
func (g *Registry) Cancel(ctx context.Context, jobID string) error {
	g.mu.Lock()
	runner := g.live[jobID]
	g.mu.Unlock()

	if runner != nil {
		runner.Token().Cancel()
		if err := runner.source.Close(); err != nil {
			zap.L().Warn("job: browser close on cancel failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
		// Only a live job still owns a log buffer; appending for a finished
		// job would recreate one that nothing removes.
		g.deps.Logs.Append(jobID, "info", "cancellation requested", nil)
	}

	// Authoritative stop: kill by tag regardless of in-memory state.
	g.deps.Tracker.FindAndKillJobProcesses(ctx, jobID)

	if runner == nil {
		// No live runner to write the terminal status, so settle it here.
		// The CAS keeps this harmless when the job already finished.
		if _, err := g.deps.Store.FinishJob(ctx, jobID, model.JobStatusCompleted, leadsFound(ctx, g.deps.Store, jobID), CancelledByUser); err != nil {
			return eris.Wrapf(err, "job: cancel %s", jobID)
		}
		zap.L().Info("job: cancellation settled without live runner",
			zap.String("job_id", jobID))
	}
	return nil
}

// Live reports whether a runner currently exists for jobID.
func (g *Registry) Live(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.live[jobID]
	return ok
}

// Rehydrate reconciles persisted state after a restart: jobs stuck in the
// running state get their leftover tagged processes killed and are marked
// failed, scheduled jobs stay queued for the dispatcher.
func (g *Registry) Rehydrate(ctx context.Context) error {
	jobs, err := g.deps.Store.ListUnfinishedJobs(ctx)
	if err != nil {
		return eris.Wrap(err, "job: rehydrate")
	}

	for _, j := range jobs {
		if len(j.Procs) > 0 {
			g.deps.Tracker.Rehydrate(j.Procs)
		}
		if j.Status != model.JobStatusRunning {
			continue
		}
		g.deps.Tracker.FindAndKillJobProcesses(ctx, j.ID)
		if _, err := g.deps.Store.FinishJob(ctx, j.ID, model.JobStatusFailed, j.LeadsFound, "interrupted by host restart"); err != nil {
			zap.L().Warn("job: rehydrate finish failed", zap.String("job_id", j.ID), zap.Error(err))
		}
		zap.L().Info("job: interrupted job reconciled", zap.String("job_id", j.ID))
	}
	return nil
}

// RunDispatcher polls for due scheduled jobs and starts them, until ctx is
// done. Multiple jobs may run concurrently; each keeps its own browser,
// token, and tracker scope.
func (g *Registry) RunDispatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.dispatchDue(ctx)
		}
	}
}

func (g *Registry) dispatchDue(ctx context.Context) {
	jobs, err := g.deps.Store.ListJobs(ctx, store.JobFilter{Status: model.JobStatusScheduled})
	if err != nil {
		zap.L().Warn("job: dispatcher list failed", zap.Error(err))
		return
	}
	now := time.Now()
	for i := range jobs {
		j := jobs[i]
		if j.ScheduledFor != nil && j.ScheduledFor.After(now) {
			continue
		}
		g.Start(ctx, &j)
	}
}

// Wait blocks until every live runner has finished. Used on shutdown.
func (g *Registry) Wait() {
	g.wg.Wait()
}

func leadsFound(ctx context.Context, s store.Store, jobID string) int {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return 0
	}
	return j.LeadsFound
}
