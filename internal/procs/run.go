package procs

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LaunchSpec describes a browser command to run for a job.
type LaunchSpec struct {
	Executable string
	Args       []string
	JobID      string
	TagPrefix  string

	// OnStart is invoked with the spawned PID right after the process starts,
	// before it finishes. Used to register the PID while it is still alive.
	OnStart func(pid int)
}

// RunTagged runs a tagged browser command to completion and returns its
// stdout. Used for one-shot DOM dumps; the tag makes even short-lived renders
// discoverable by a kill sweep. The process runs in its own group so a kill
// takes the renderer children with it.
func RunTagged(ctx context.Context, spec LaunchSpec) ([]byte, error) {
	args := append([]string{}, spec.Args...)
	args = append(args, Tag(spec.TagPrefix, spec.JobID))

	cmd := exec.CommandContext(ctx, spec.Executable, args...)
	cmd.SysProcAttr = sysProcAttr()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, eris.Wrapf(err, "procs: start %s", spec.Executable)
	}
	if spec.OnStart != nil {
		spec.OnStart(cmd.Process.Pid)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Debug("procs: tagged run failed",
			zap.String("job_id", spec.JobID),
			zap.String("stderr", stderr.String()),
		)
		return nil, eris.Wrapf(err, "procs: run %s", spec.Executable)
	}
	return stdout.Bytes(), nil
}
