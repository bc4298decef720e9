// Package procs tracks and terminates the OS-level browser processes a job
// spawns. Browser command lines are tagged with an opaque job argument so
// ownership can be re-derived from the OS alone, including after a host
// restart wiped the in-memory registry.
package procs

import (
	"context"
	"fmt"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// ProcessInfo is the common shape returned by every platform lister.
type ProcessInfo struct {
	PID     int
	Command string
}

// Lister enumerates host processes. Implementations shell out to the
// platform's process tool; enumeration failures degrade to an empty result.
type Lister interface {
	List(ctx context.Context) ([]ProcessInfo, error)
}

// Killer terminates a process tree rooted at pid.
type Killer interface {
	Kill(pid int) error
}

// ProcStore persists a job's tracked PID list so cleanup survives restarts.
type ProcStore interface {
	SaveJobProcs(ctx context.Context, jobID string, procs []model.TrackedProcess) error
	ClearJobProcs(ctx context.Context, jobID string) error
}

// KillReport summarizes one kill sweep.
type KillReport struct {
	Found  int
	Killed int
	Failed int
}

// Tag returns the command-line argument that marks a browser as belonging to
// jobID. Browsers ignore unknown flags, so the tag rides along harmlessly.
func Tag(prefix, jobID string) string {
	return fmt.Sprintf("--%s-job=%s", prefix, jobID)
}

// ToolMarker returns the substring shared by every tag this tool emits,
// regardless of job. Used by the global kill-all safety valve.
func ToolMarker(prefix string) string {
	return fmt.Sprintf("--%s-job=", prefix)
}
