// Package store is the persistence boundary: jobs with their tracked process
// descriptors, the analyzed-business dedup history, and qualified leads.
// Two backends exist, SQLite (default) and Postgres.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// ErrNotFound is returned when a requested job does not exist.
var ErrNotFound = eris.New("job not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead-generation engine.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	// MarkJobRunning transitions scheduled → running; returns false if the
	// job was not in the scheduled state.
	MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) (bool, error)
	// FinishJob writes a terminal status. First writer wins: a job already
	// terminal is left untouched and false is returned, which settles the
	// race between user cancellation and the orchestrator's own completion.
	FinishJob(ctx context.Context, jobID string, status model.JobStatus, leadsFound int, lastError string) (bool, error)
	UpdateJobProgress(ctx context.Context, jobID string, leadsFound int) error
	// ListUnfinishedJobs returns scheduled and running jobs, used by the
	// startup rehydration path and the dispatcher.
	ListUnfinishedJobs(ctx context.Context) ([]model.Job, error)

	// Tracked process descriptors (procs.ProcStore)
	SaveJobProcs(ctx context.Context, jobID string, procs []model.TrackedProcess) error
	ClearJobProcs(ctx context.Context, jobID string) error

	// Dedup history
	UpsertAnalyzed(ctx context.Context, rec model.AnalyzedBusinessRecord) error
	// GetAnalyzed returns (nil, nil) when the identity was never seen.
	GetAnalyzed(ctx context.Context, identity string) (*model.AnalyzedBusinessRecord, error)

	// Leads
	CreateLead(ctx context.Context, jobID string, lead model.EnrichedLead) (string, error)
	ListLeads(ctx context.Context, jobID string) ([]model.EnrichedLead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
