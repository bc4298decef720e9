package procs

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// Tracker owns the mapping from job IDs to live OS processes. It is the sole
// owner of that registry: processes are removed the instant they are confirmed
// dead or the job ends. Every mutation is idempotent so the orchestrator's
// cleanup path and an explicit user cancel are safe to race.
type Tracker struct {
	lister Lister
	killer Killer
	store  ProcStore
	prefix string

	mu   sync.Mutex
	jobs map[string]map[int]model.TrackedProcess
}

// NewTracker creates a Tracker using the given platform lister/killer and an
// optional persistence store (nil disables persistence).
func NewTracker(lister Lister, killer Killer, store ProcStore, tagPrefix string) *Tracker {
	if tagPrefix == "" {
		tagPrefix = "leadgen"
	}
	return &Tracker{
		lister: lister,
		killer: killer,
		store:  store,
		prefix: tagPrefix,
		jobs:   make(map[string]map[int]model.TrackedProcess),
	}
}

// Tag returns the command-line tag for jobID under this tracker's prefix.
func (t *Tracker) Tag(jobID string) string {
	return Tag(t.prefix, jobID)
}

// RegisterSpawned records a PID we launched ourselves and persists the
// updated list immediately.
func (t *Tracker) RegisterSpawned(ctx context.Context, jobID string, pid int, executable string) {
	t.register(jobID, model.TrackedProcess{
		PID:        pid,
		JobID:      jobID,
		Discovery:  "spawned",
		Executable: executable,
	})
	t.persist(ctx, jobID)
}

// RegisterByTag scans host processes for jobID's tag and registers every
// match, then persists the updated list. Returns how many processes are now
// tracked for the job.
func (t *Tracker) RegisterByTag(ctx context.Context, jobID string) int {
	tag := t.Tag(jobID)
	list, err := t.lister.List(ctx)
	if err != nil {
		zap.L().Warn("procs: enumeration failed during registration",
			zap.String("job_id", jobID), zap.Error(err))
	}
	for _, p := range list {
		if strings.Contains(p.Command, tag) {
			t.register(jobID, model.TrackedProcess{
				PID:       p.PID,
				JobID:     jobID,
				Discovery: "tag-match",
			})
		}
	}
	t.persist(ctx, jobID)

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs[jobID])
}

// Snapshot returns the currently tracked processes for jobID.
func (t *Tracker) Snapshot(jobID string) []model.TrackedProcess {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.TrackedProcess, 0, len(t.jobs[jobID]))
	for _, p := range t.jobs[jobID] {
		out = append(out, p)
	}
	return out
}

// SnapshotAll returns every tracked process across jobs.
func (t *Tracker) SnapshotAll() []model.TrackedProcess {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.TrackedProcess
	for _, procs := range t.jobs {
		for _, p := range procs {
			out = append(out, p)
		}
	}
	return out
}

// Rehydrate seeds the registry from descriptors loaded out of durable storage,
// typically on startup after a host restart.
func (t *Tracker) Rehydrate(descs []model.TrackedProcess) {
	for _, d := range descs {
		t.register(d.JobID, d)
	}
}

// FindAndKillJobProcesses terminates every process belonging to jobID. Truth
// is re-derived from a fresh tag scan, so it works with an empty in-memory
// registry (after a restart). A previously registered PID that no longer
// matches the tag in the fresh scan is treated as already dead: PIDs get
// recycled, and killing an unverified PID could hit an unrelated process.
// Kill failures are counted, never fatal. Idempotent.
func (t *Tracker) FindAndKillJobProcesses(ctx context.Context, jobID string) KillReport {
	report := t.killMatching(ctx, t.Tag(jobID))

	t.mu.Lock()
	delete(t.jobs, jobID)
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.ClearJobProcs(ctx, jobID); err != nil {
			zap.L().Warn("procs: clear persisted pids failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}

	zap.L().Info("procs: job kill sweep done",
		zap.String("job_id", jobID),
		zap.Int("found", report.Found),
		zap.Int("killed", report.Killed),
		zap.Int("failed", report.Failed),
	)
	return report
}

// KillAllScraperProcesses is the global safety valve: it terminates every
// process tagged by this tool, independent of job and of in-memory state.
func (t *Tracker) KillAllScraperProcesses(ctx context.Context) KillReport {
	report := t.killMatching(ctx, ToolMarker(t.prefix))

	t.mu.Lock()
	t.jobs = make(map[string]map[int]model.TrackedProcess)
	t.mu.Unlock()

	zap.L().Info("procs: global kill sweep done",
		zap.Int("found", report.Found),
		zap.Int("killed", report.Killed),
		zap.Int("failed", report.Failed),
	)
	return report
}

// LiveMatches returns processes whose command line currently carries any tag
// from this tool. Used by the status CLI.
func (t *Tracker) LiveMatches(ctx context.Context) []ProcessInfo {
	list, err := t.lister.List(ctx)
	if err != nil {
		return nil
	}
	marker := ToolMarker(t.prefix)
	var out []ProcessInfo
	for _, p := range list {
		if strings.Contains(p.Command, marker) {
			out = append(out, p)
		}
	}
	return out
}

// killMatching scans for processes whose command line contains needle and
// kills each one. The scan itself is the safe-kill validation: only processes
// that carry the tag right now are terminated.
func (t *Tracker) killMatching(ctx context.Context, needle string) KillReport {
	var report KillReport

	list, err := t.lister.List(ctx)
	if err != nil {
		zap.L().Warn("procs: enumeration failed during kill sweep", zap.Error(err))
		return report
	}

	for _, p := range list {
		if !strings.Contains(p.Command, needle) {
			continue
		}
		report.Found++
		if err := t.killer.Kill(p.PID); err != nil {
			report.Failed++
			zap.L().Warn("procs: kill failed",
				zap.Int("pid", p.PID), zap.Error(err))
			continue
		}
		report.Killed++
	}
	return report
}

func (t *Tracker) register(jobID string, p model.TrackedProcess) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.jobs[jobID] == nil {
		t.jobs[jobID] = make(map[int]model.TrackedProcess)
	}
	t.jobs[jobID][p.PID] = p
}

func (t *Tracker) persist(ctx context.Context, jobID string) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveJobProcs(ctx, jobID, t.Snapshot(jobID)); err != nil {
		zap.L().Warn("procs: persist pids failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
}
