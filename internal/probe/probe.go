// Package probe looks for running Caddy processes on the host. systemd's
// view of the unit can disagree with reality (a caddy started by hand, a
// leftover from a previous install), so status reports both.
package probe

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Process describes one running instance of the probed binary.
type Process struct {
	PID     int32
	Exe     string
	Status  string
	RSS     uint64
	Started time.Time
}

// normalizedStatuses folds gopsutil's status strings into a small set.
var normalizedStatuses = map[string]string{
	"running":    "running",
	"sleeping":   "sleeping",
	"sleep":      "sleeping",
	"disk-sleep": "sleeping",
	"idle":       "idle",
	"stopped":    "stopped",
	"stop":       "stopped",
	"zombie":     "zombie",
	"dead":       "zombie",
}

func normalizeStatus(raw []string) string {
	if len(raw) == 0 {
		return "unknown"
	}
	key := strings.ToLower(strings.TrimSpace(raw[0]))
	if mapped, ok := normalizedStatuses[key]; ok {
		return mapped
	}
	return key
}

// Find returns the processes running binary, oldest first. Processes that
// vanish or cannot be inspected while listing are skipped.
func Find(ctx context.Context, binary string) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var found []Process
	for _, p := range procs {
		name, _ := p.NameWithContext(ctx)
		exe, _ := p.ExeWithContext(ctx)
		if !matches(exe, name, binary) {
			continue
		}

		info := Process{PID: p.Pid, Exe: exe}
		if status, err := p.StatusWithContext(ctx); err == nil {
			info.Status = normalizeStatus(status)
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			info.RSS = mem.RSS
		}
		if created, err := p.CreateTimeWithContext(ctx); err == nil {
			info.Started = time.UnixMilli(created)
		}
		found = append(found, info)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Started.Before(found[j].Started)
	})
	return found, nil
}

// matches compares by executable path when it is readable, and falls back to
// the process name otherwise (unprivileged callers cannot read other users'
// /proc/<pid>/exe).
func matches(exe, name, binary string) bool {
	if exe != "" {
		return filepath.Clean(exe) == filepath.Clean(binary)
	}
	return name != "" && name == filepath.Base(binary)
}
