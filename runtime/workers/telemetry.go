package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"workspace-chat/contract"
)

// TelemetryWorker periodically logs process health (RSS, CPU) together
// with hub counters. Logs only; the workspace application polls system
// information through its own channels.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    contract.StatsSource
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats contract.StatsSource, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := w.stats.Stats()
			attrs := []any{
				"connections", stats.Connections,
				"bound", stats.Bound,
				"broadcasts", stats.Broadcasts,
			}
			if memory, err := self.MemoryInfo(); err == nil {
				attrs = append(attrs, "rss_mb", memory.RSS/(1<<20))
			}
			if cpu, err := self.CPUPercent(); err == nil {
				attrs = append(attrs, "cpu_percent", cpu)
			}
			w.log.Info("Hub telemetry", attrs...)
		}
	}
}
