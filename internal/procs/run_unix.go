//go:build linux || darwin

package procs

import "syscall"

// sysProcAttr makes the spawned browser its own process-group leader so the
// whole renderer tree can be killed with one group signal.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
