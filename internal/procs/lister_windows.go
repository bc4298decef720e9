//go:build windows

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

// wmicLister enumerates processes via wmic, which exposes full command lines.
type wmicLister struct{}

// NewLister returns the platform process lister.
func NewLister() Lister {
	return &wmicLister{}
}

func (l *wmicLister) List(ctx context.Context) ([]ProcessInfo, error) {
	out, err := exec.CommandContext(ctx, "wmic", "process", "get", "ProcessId,CommandLine", "/format:csv").Output()
	if err != nil {
		zap.L().Debug("procs: wmic enumeration failed", zap.Error(err))
		return nil, nil
	}
	return parseWMIC(out), nil
}

// parseWMIC parses wmic CSV output: Node,CommandLine,ProcessId. Command lines
// may themselves contain commas, so the PID is taken from the last field.
func parseWMIC(out []byte) []ProcessInfo {
	var procs []ProcessInfo
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			continue // header
		}
		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}
		rest := line[:idx]
		if comma := strings.Index(rest, ","); comma >= 0 {
			rest = rest[comma+1:] // strip Node
		}
		procs = append(procs, ProcessInfo{PID: pid, Command: strings.TrimSpace(rest)})
	}
	return procs
}
