// Package stats periodically samples process resource usage and logs it.
// Adapted from the teacher's DynamicCapacityManager (src/capacity.go): that
// code used CPU/memory samples to gate admission dynamically. This server's
// admission control is the spec's fixed max_clients counter, so here the
// same gopsutil signal is observability only — it never influences which
// connections get accepted.
package stats

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Reporter samples this process's CPU and RSS on an interval and logs them.
type Reporter struct {
	interval time.Duration
	logger   zerolog.Logger
	proc     *process.Process
}

// New creates a reporter for the current process. If the process handle
// cannot be obtained, Run becomes a no-op (the server still starts; this is
// an observability nicety, not a correctness dependency).
func New(interval time.Duration, logger zerolog.Logger) *Reporter {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("stats: could not open process handle, periodic sampling disabled")
		proc = nil
	}
	return &Reporter{interval: interval, logger: logger, proc: proc}
}

// Run samples until ctx is cancelled. Intended to be launched in its own
// goroutine from main.
func (r *Reporter) Run(ctx context.Context) {
	if r.proc == nil {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *Reporter) sample() {
	cpuPercent, err := r.proc.CPUPercent()
	if err != nil {
		r.logger.Debug().Err(err).Msg("stats: cpu sample failed")
		return
	}
	memInfo, err := r.proc.MemoryInfo()
	if err != nil {
		r.logger.Debug().Err(err).Msg("stats: memory sample failed")
		return
	}
	r.logger.Info().
		Float64("cpu_percent", cpuPercent).
		Uint64("rss_bytes", memInfo.RSS).
		Msg("resource sample")
}
