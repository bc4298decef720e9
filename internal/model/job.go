package model

import "time"

// JobStatus is the lifecycle state of a lead-generation job.
type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// TrackedProcess describes an OS process associated with a job. The list is
// persisted on the job row so leftover browsers can be killed after a host
// restart, when the in-memory registry is gone.
type TrackedProcess struct {
	PID        int    `json:"pid"`
	JobID      string `json:"job_id"`
	Discovery  string `json:"discovery"` // "spawned" or "tag-match"
	Executable string `json:"executable,omitempty"`
}

// Job is a single lead-generation run over a (categories x locations) search space.
type Job struct {
	ID           string           `json:"id"`
	Status       JobStatus        `json:"status"`
	Categories   []string         `json:"categories"`
	Locations    []string         `json:"locations"`
	Country      string           `json:"country"`
	MinRating    float64          `json:"min_rating"`
	TargetLeads  int              `json:"target_leads"`
	LeadsFound   int              `json:"leads_found"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
	Procs        []TrackedProcess `json:"procs,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// JobLogEntry is one line of a job's in-memory log buffer.
type JobLogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
