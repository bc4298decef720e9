//go:build linux || darwin

package procs

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// psLister enumerates processes by shelling out to ps. Works on both Linux
// and macOS with the portable axo format.
type psLister struct{}

// NewLister returns the platform process lister.
func NewLister() Lister {
	return &psLister{}
}

func (l *psLister) List(ctx context.Context) ([]ProcessInfo, error) {
	out, err := exec.CommandContext(ctx, "ps", "axo", "pid=,command=").Output()
	if err != nil {
		// Missing tool or permission trouble: degrade to empty, never fail.
		zap.L().Debug("procs: ps enumeration failed", zap.Error(err))
		return nil, nil
	}
	return parsePS(out), nil
}

func parsePS(out []byte) []ProcessInfo {
	var procs []ProcessInfo
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Command: strings.TrimSpace(fields[1])})
	}
	return procs
}
