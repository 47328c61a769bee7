package core

// scheduler.go runs background maintenance for the service.
//
// The report sweeper evicts expired import reports on a fixed interval.
// Fetching a report already checks its age, so the sweep only bounds memory.
// The sweeper is long-running and stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when the configured interval is not positive.
const DefaultSweepInterval = 10 * time.Minute

// StartReportSweeper purges expired reports every interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartReportSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("report sweeper started",
		"interval", interval,
		"ttl", s.reports.TTL(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("report sweeper stopped")
			return
		case <-ticker.C:
			s.sweepReports()
		}
	}
}

// sweepReports performs one purge cycle.
func (s *Service) sweepReports() int {
	start := time.Now()
	purged := s.reports.PurgeExpired()
	if purged > 0 {
		slog.Info("purged expired import reports",
			"reports_purged", purged,
			"reports_kept", s.reports.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return purged
}
