//go:build linux || darwin

package procs

import "syscall"

// groupKiller terminates a whole process group. Browsers spawn renderer
// children, so killing only the top-level PID leaves orphans behind.
type groupKiller struct{}

// NewKiller returns the platform process-tree killer.
func NewKiller() Killer {
	return &groupKiller{}
}

func (k *groupKiller) Kill(pid int) error {
	// Negative PID targets the process group. Fall back to the single PID if
	// the process was not a group leader.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		return syscall.Kill(pid, syscall.SIGKILL)
	}
	return nil
}
