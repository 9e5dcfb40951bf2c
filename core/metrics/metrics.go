package metrics

import (
	"time"

	"asset-sync/core/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "asset_sync"

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusIgnored = "ignored"
)

var (
	// runsTotal counts synchronization runs.
	// Labels: status (success, failed, ignored), dry_run
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Total synchronization runs",
	}, []string{"status", "dry_run"})

	// runDuration measures a full run, lock wait included.
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Synchronization run duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"status"})

	// changesTotal counts record changes by kind (created, updated, archived, ...).
	changesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "changes_total",
		Help:      "Total record changes applied or planned",
	}, []string{"kind"})

	// reportPaths counts paths listed in report entries.
	reportPaths = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "report_paths_total",
		Help:      "Total paths reported by severity",
	}, []string{"severity"})

	// archiveFailures counts reports that could not be archived.
	archiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "archive_failures_total",
		Help:      "Total reports that failed to archive",
	})
)

// Status maps a report onto a run outcome label.
func Status(r *reconcile.Report) string {
	switch {
	case r.Success:
		return StatusSuccess
	case r.Message == reconcile.MsgProjectIgnored:
		return StatusIgnored
	default:
		return StatusFailed
	}
}

// ObserveRun records one finished run.
func ObserveRun(r *reconcile.Report, d time.Duration) {
	if r == nil {
		return
	}
	status := Status(r)
	dryRun := "false"
	if r.DryRun {
		dryRun = "true"
	}
	runsTotal.WithLabelValues(status, dryRun).Inc()
	runDuration.WithLabelValues(status).Observe(d.Seconds())

	s := r.Summary
	for kind, n := range map[string]int{
		"created":       s.Created,
		"unarchived":    s.Unarchived,
		"updated":       s.Updated,
		"archived":      s.Archived,
		"recreated":     s.Recreated,
		"reverted":      s.Reverted,
		"pruned":        s.Pruned,
		"source_writes": s.SourceWrites,
	} {
		if n > 0 {
			changesTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
	for _, e := range r.Entries {
		reportPaths.WithLabelValues(string(e.Severity)).Add(float64(len(e.Paths)))
	}
}

// ArchiveFailed records a report that could not be archived.
func ArchiveFailed() {
	archiveFailures.Inc()
}
