// Package observability exposes Prometheus metrics for catalog ingestion and
// reconciliation.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/ingest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coach_catalog"

var (
	rowsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Rows produced by uploads, by category and outcome (accepted or dropped).",
	}, []string{"category", "outcome"})

	batchesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "batches_rejected_total",
		Help:      "Uploads rejected as a whole, by category and reason.",
	}, []string{"category", "reason"})

	quotaBlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quota",
		Name:      "blocked_rows_total",
		Help:      "Rows refused because the plan limit was reached.",
	}, []string{"category"})

	reconcileRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "reloads_total",
		Help:      "Catalog reloads by category and outcome.",
	}, []string{"category", "outcome"})

	lastReconcile = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "last_applied_timestamp_seconds",
		Help:      "Unix timestamp of the most recent reload applied to a workspace.",
	})

	submittedRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submit",
		Name:      "rows_total",
		Help:      "Rows written to programs, by category and whether an id was assigned.",
	}, []string{"category", "assigned"})
)

func init() {
	prometheus.MustRegister(rowsIngested, batchesRejected, quotaBlocked, reconcileRuns, lastReconcile, submittedRows)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder implements catalog.Observer.
type Recorder struct {
	now func() time.Time
}

var _ catalog.Observer = Recorder{}

func NewRecorder() Recorder {
	return Recorder{now: time.Now}
}

func (r Recorder) Reloaded(category catalog.Category, outcome catalog.ReloadOutcome) {
	reconcileRuns.WithLabelValues(string(category), string(outcome)).Inc()
	if outcome == catalog.ReloadApplied {
		now := time.Now
		if r.now != nil {
			now = r.now
		}
		lastReconcile.Set(float64(now().Unix()))
	}
}

func (Recorder) QuotaBlocked(category catalog.Category, blocked int) {
	if blocked <= 0 {
		return
	}
	quotaBlocked.WithLabelValues(string(category)).Add(float64(blocked))
}

// RecordIngestEvent is an ingest.Options.Observer. Quota-blocked rows are
// counted by the workspace through Recorder, not here.
func RecordIngestEvent(ev ingest.Event) {
	category := string(ev.Category)
	switch ev.To {
	case ingest.StateRejected:
		batchesRejected.WithLabelValues(category, ev.Reason).Inc()
		if ev.Reason == ingest.ReasonQuota && ev.Dropped > 0 {
			rowsIngested.WithLabelValues(category, "dropped").Add(float64(ev.Dropped))
		}
	case ingest.StateIdle:
		if ev.Accepted > 0 {
			rowsIngested.WithLabelValues(category, "accepted").Add(float64(ev.Accepted))
		}
		if ev.Dropped > 0 {
			rowsIngested.WithLabelValues(category, "dropped").Add(float64(ev.Dropped))
		}
	}
}

// RecordSubmit counts rows written by a submit.
func RecordSubmit(category catalog.Category, saved, assigned int) {
	if assigned > 0 {
		submittedRows.WithLabelValues(string(category), strconv.FormatBool(true)).Add(float64(assigned))
	}
	if rest := saved - assigned; rest > 0 {
		submittedRows.WithLabelValues(string(category), strconv.FormatBool(false)).Add(float64(rest))
	}
}
