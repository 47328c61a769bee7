package importer

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_import_runs_total",
		Help: "Number of contact import runs by mode and dry-run flag.",
	}, []string{"mode", "dry_run"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_import_rows_total",
		Help: "Number of imported rows by outcome.",
	}, []string{"status"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contacts_import_duration_seconds",
		Help:    "Time spent parsing and applying contact imports.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dry_run"})
)

func observeDryRun(mode Mode, res DryRunResult, elapsed time.Duration) {
	dryRun := strconv.FormatBool(true)
	importRuns.WithLabelValues(string(mode), dryRun).Inc()
	importDuration.WithLabelValues(dryRun).Observe(elapsed.Seconds())
	importRows.WithLabelValues("valid").Add(float64(res.Valid))
	importRows.WithLabelValues("invalid").Add(float64(res.Invalid))
}

func observeApply(mode Mode, out *Outcome, elapsed time.Duration) {
	dryRun := strconv.FormatBool(false)
	importRuns.WithLabelValues(string(mode), dryRun).Inc()
	importDuration.WithLabelValues(dryRun).Observe(elapsed.Seconds())
	importRows.WithLabelValues(string(StatusCreated)).Add(float64(out.Created))
	importRows.WithLabelValues(string(StatusUpdated)).Add(float64(out.Updated))
	importRows.WithLabelValues(string(StatusSkipped)).Add(float64(out.Skipped))
	importRows.WithLabelValues(string(StatusFailed)).Add(float64(out.Failed))
}
