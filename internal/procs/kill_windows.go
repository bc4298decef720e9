//go:build windows

package procs

import (
	"os/exec"
	"strconv"
)

// treeKiller terminates a process tree via taskkill /T.
type treeKiller struct{}

// NewKiller returns the platform process-tree killer.
func NewKiller() Killer {
	return &treeKiller{}
}

func (k *treeKiller) Kill(pid int) error {
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").Run()
}
