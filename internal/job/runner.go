// Package job drives the lead-generation state machine: one runner per job
// walks the categories-by-locations search space, gates and enriches
// candidates, and owns the job's cancellation token and browser processes.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/enrich"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/history"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/joblog"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/procs"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/quality"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/search"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/store"
)

// CancelledByUser is the lastError recorded for a user-initiated cancel. The
// job still counts as completed: stopping on request is not a failure.
const CancelledByUser = "cancelled by user"

// errTargetReached breaks out of every loop the moment the requested lead
// count is met.
var errTargetReached = errors.New("target reached")

// Deps bundles everything a runner needs. Source construction is a factory
// because each job owns its own tagged browser.
type Deps struct {
	Store     store.Store
	Tracker   *procs.Tracker
	Gate      *quality.Gate
	Pipeline  *enrich.Pipeline
	History   *history.History
	Logs      *joblog.Logger
	NewSource func(jobID string) search.Source
}

// Runner executes a single job to a terminal state.
type Runner struct {
	deps   Deps
	job    *model.Job
	tok    *cancel.Token
	source search.Source
	found  int
}

// NewRunner prepares a runner. The token and source are created here so the
// registry can cancel them before Run is even entered.
func NewRunner(deps Deps, job *model.Job) *Runner {
	return &Runner{
		deps:   deps,
		job:    job,
		tok:    cancel.New(context.Background()),
		source: deps.NewSource(job.ID),
	}
}

// Token exposes the job's cancellation token to the registry.
func (r *Runner) Token() *cancel.Token { return r.tok }

// Run drives the job from running to a terminal state. The cleanup sequence
// is unconditional: it runs on success, cancellation, and failure alike.
func (r *Runner) Run(ctx context.Context) {
	ok, err := r.deps.Store.MarkJobRunning(ctx, r.job.ID, time.Now().UTC())
	if err != nil {
		zap.L().Error("job: mark running failed", zap.String("job_id", r.job.ID), zap.Error(err))
		return
	}
	if !ok {
		zap.L().Warn("job: not in scheduled state, skipping", zap.String("job_id", r.job.ID))
		return
	}

	r.found = r.job.LeadsFound
	r.log("info", "job started", map[string]any{
		"categories": r.job.Categories,
		"locations":  r.job.Locations,
		"target":     r.job.TargetLeads,
	})

	runErr := r.walk()
	r.finish(runErr)
}

// walk iterates the search space. Returns nil on normal exhaustion or target
// reached, ErrCancelled on cancellation, anything else is fatal.
func (r *Runner) walk() error {
	for _, category := range r.job.Categories {
		for _, location := range r.job.Locations {
			err := r.searchLocation(category, location)
			switch {
			case err == nil:
				continue
			case errors.Is(err, errTargetReached):
				return nil
			default:
				return err
			}
		}
	}
	return nil
}

func (r *Runner) searchLocation(category, location string) error {
	if r.tok.Cancelled() {
		return cancel.ErrCancelled
	}
	if r.found >= r.job.TargetLeads {
		return errTargetReached
	}

	candidates, err := r.source.Search(r.tok, search.Query{
		Category:   category,
		Location:   location,
		Country:    r.job.Country,
		MinRating:  r.job.MinRating,
		MaxResults: r.job.TargetLeads - r.found,
	})
	if err != nil {
		// A closed browser means the job was torn down under us; treat it
		// exactly like a cancellation.
		if errors.Is(err, search.ErrBrowserClosed) || cancel.IsCancellation(err) {
			return cancel.ErrCancelled
		}
		r.log("warn", "location search failed", map[string]any{
			"category": category, "location": location, "error": err.Error(),
		})
		return nil
	}

	r.log("info", "location searched", map[string]any{
		"category": category, "location": location, "candidates": len(candidates),
	})

	jc := model.JobContext{
		JobID:    r.job.ID,
		Location: location,
		Category: category,
		Country:  r.job.Country,
	}
	for _, cand := range candidates {
		if err := r.processCandidate(cand, jc); err != nil {
			return err
		}
		if r.found >= r.job.TargetLeads {
			return errTargetReached
		}
	}
	return nil
}

// processCandidate runs dedup, the quality gate, and enrichment for one
// candidate. Only cancellation (or target-reached upstream) stops the job;
// every rejection records to history and moves on.
func (r *Runner) processCandidate(cand model.Candidate, jc model.JobContext) error {
	if r.tok.Cancelled() {
		return cancel.ErrCancelled
	}

	ctx := r.tok.Context()
	identity := r.deps.History.Identity(cand, jc)

	verdict, prior, err := r.deps.History.Check(ctx, identity)
	if err != nil {
		r.log("warn", "dedup check failed", map[string]any{"candidate": cand.Name, "error": err.Error()})
	}
	if verdict == history.VerdictSkip {
		reason := "previously converted"
		if prior != nil && !prior.Prospect {
			reason = prior.SkipReason
		}
		r.log("info", "candidate skipped", map[string]any{"candidate": cand.Name, "reason": reason})
		return nil
	}

	gateResult, err := r.deps.Gate.Evaluate(r.tok, cand.Website)
	if err != nil {
		return cancel.ErrCancelled
	}
	if !gateResult.Prospect {
		r.log("info", "candidate rejected by quality gate", map[string]any{
			"candidate": cand.Name, "score": gateResult.Score,
		})
		if err := r.deps.History.RecordRejection(ctx, identity, cand, jc, "website quality above threshold", gateResult.Score); err != nil {
			r.log("warn", "history record failed", map[string]any{"candidate": cand.Name, "error": err.Error()})
		}
		return nil
	}

	if err := r.deps.History.RecordProspect(ctx, identity, cand, jc, gateResult.Score); err != nil {
		r.log("warn", "history record failed", map[string]any{"candidate": cand.Name, "error": err.Error()})
	}

	lead, err := r.deps.Pipeline.Enrich(r.tok, cand, jc, gateResult.Score)
	if err != nil {
		if cancel.IsCancellation(err) {
			return cancel.ErrCancelled
		}
		// The pipeline absorbs everything recoverable; anything else is fatal.
		return eris.Wrapf(err, "job: enrich %s", cand.Name)
	}

	if lead.Qualification.Tier == model.TierD {
		r.log("info", "candidate disqualified by oracle", map[string]any{
			"candidate": cand.Name, "score": lead.Qualification.Score,
		})
		if err := r.deps.History.RecordRejection(ctx, identity, cand, jc, "disqualified by oracle tier", gateResult.Score); err != nil {
			r.log("warn", "history record failed", map[string]any{"candidate": cand.Name, "error": err.Error()})
		}
		return nil
	}

	leadID, err := r.deps.Store.CreateLead(ctx, r.job.ID, *lead)
	if err != nil {
		return eris.Wrapf(err, "job: persist lead %s", cand.Name)
	}
	if err := r.deps.History.RecordConverted(ctx, identity, cand, jc, gateResult.Score, leadID); err != nil {
		r.log("warn", "history record failed", map[string]any{"candidate": cand.Name, "error": err.Error()})
	}

	r.found++
	if err := r.deps.Store.UpdateJobProgress(ctx, r.job.ID, r.found); err != nil {
		r.log("warn", "progress update failed", map[string]any{"error": err.Error()})
	}
	r.log("info", "lead created", map[string]any{
		"candidate": cand.Name,
		"lead_id":   leadID,
		"tier":      string(lead.Qualification.Tier),
		"found":     r.found,
		"target":    r.job.TargetLeads,
	})
	return nil
}

// finish runs the unconditional cleanup sequence: persist the terminal
// status, release the token, close the browser, sweep tagged processes, and
// clear persisted PIDs. A fresh context is used throughout because the job's
// own context is typically already cancelled here.
func (r *Runner) finish(runErr error) {
	status := model.JobStatusCompleted
	lastError := ""
	switch {
	case runErr == nil:
	case cancel.IsCancellation(runErr):
		lastError = CancelledByUser
	default:
		status = model.JobStatusFailed
		lastError = runErr.Error()
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFn()

	won, err := r.deps.Store.FinishJob(ctx, r.job.ID, status, r.found, lastError)
	if err != nil {
		zap.L().Error("job: persist terminal status failed",
			zap.String("job_id", r.job.ID), zap.Error(err))
	}

	r.tok.Cancel()
	if err := r.source.Close(); err != nil {
		zap.L().Warn("job: browser close failed", zap.String("job_id", r.job.ID), zap.Error(err))
	}
	report := r.deps.Tracker.FindAndKillJobProcesses(ctx, r.job.ID)

	r.log("info", "job finished", map[string]any{
		"status":       string(status),
		"leads_found":  r.found,
		"last_error":   lastError,
		"wrote_status": won,
		"procs_found":  report.Found,
		"procs_killed": report.Killed,
		"procs_failed": report.Failed,
	})
}

func (r *Runner) log(level, msg string, details map[string]any) {
	r.deps.Logs.Append(r.job.ID, level, msg, details)
}
