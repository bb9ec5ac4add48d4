// Package metrics exposes Prometheus metrics for collaborator imports.
package metrics

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collabimport"

// Recorder counts finished imports. It implements core.AuditSink so the
// service reports to it the same way it reports to the audit log.
type Recorder struct {
	imports  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ core.AuditSink = (*Recorder)(nil)

// NewRecorder registers the import metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Total number of finished import attempts.",
		}, []string{"outcome"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed by finished imports, by result.",
		}, []string{"result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of import attempts.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
	}
}

// RecordImport updates the counters for one finished import.
func (r *Recorder) RecordImport(_ context.Context, e core.ImportAuditEntry) error {
	outcome := string(e.Outcome)
	r.imports.WithLabelValues(outcome).Inc()

	r.rows.WithLabelValues("resolved").Add(float64(e.Resolved))
	r.rows.WithLabelValues("failed").Add(float64(e.Failed))
	r.rows.WithLabelValues("succeeded").Add(float64(e.Succeeded))

	if !e.StartedAt.IsZero() && e.FinishedAt.After(e.StartedAt) {
		r.duration.WithLabelValues(outcome).Observe(e.FinishedAt.Sub(e.StartedAt).Seconds())
	}
	return nil
}

// ServiceStats is the part of core.Service the gauges read.
type ServiceStats interface {
	LimiterStatus() core.ImportLimiterStatus
	SessionCount() int
}

// RegisterService adds gauges for running imports and retained sessions.
func RegisterService(reg prometheus.Registerer, svc ServiceStats) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_imports",
		Help:      "Imports currently holding a concurrency slot.",
	}, func() float64 { return float64(svc.LimiterStatus().Active) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "available_import_slots",
		Help:      "Free concurrency slots.",
	}, func() float64 { return float64(svc.LimiterStatus().Available) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Import sessions kept in memory.",
	}, func() float64 { return float64(svc.SessionCount()) })
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
