package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storeops/internal/cascade"
)

// Metrics holds the service collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DeletionsTotal   *prometheus.CounterVec
	DeletionDuration *prometheus.HistogramVec
	RowsDeleted      *prometheus.CounterVec
	Objects          *prometheus.CounterVec
	PlannedRows      prometheus.Histogram

	JobsProcessed *prometheus.CounterVec
}

// New registers every collector on reg under prefix.
func New(prefix string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		DeletionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_store_deletions_total",
				Help: "Store deletion requests by mode (dry_run, execute) and outcome",
			},
			[]string{"mode", "outcome"},
		),
		DeletionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_store_deletion_duration_seconds",
				Help:    "Duration of store deletions in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		RowsDeleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_store_rows_deleted_total",
				Help: "Rows removed by store deletions, per table",
			},
			[]string{"table"},
		),
		Objects: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_store_objects_total",
				Help: "Storage objects handled by store deletions (removed, missing)",
			},
			[]string{"result"},
		),
		PlannedRows: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    prefix + "_store_plan_rows",
				Help:    "Rows found per deletion plan",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		JobsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_deletion_jobs_processed_total",
				Help: "Queued deletion jobs processed, by resulting status",
			},
			[]string{"status"},
		),
	}
}

// Mode returns the label for a dry run or a real run.
func Mode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "execute"
}

// ObserveDeletion records one finished deletion request.
func (m *Metrics) ObserveDeletion(dryRun bool, outcome string, elapsed time.Duration) {
	mode := Mode(dryRun)
	m.DeletionsTotal.WithLabelValues(mode, outcome).Inc()
	m.DeletionDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObservePlan records the size of a plan.
func (m *Metrics) ObservePlan(plan *cascade.Plan) {
	if plan == nil {
		return
	}
	m.PlannedRows.Observe(float64(plan.TotalRows()))
}

// ObserveSummary records what a real deletion removed.
func (m *Metrics) ObserveSummary(s *cascade.Summary) {
	if s == nil {
		return
	}
	for table, n := range s.RowsDeleted {
		m.RowsDeleted.WithLabelValues(table).Add(float64(n))
	}
	m.Objects.WithLabelValues("removed").Add(float64(s.ObjectsRemoved))
	m.Objects.WithLabelValues("missing").Add(float64(s.ObjectsMissing))
}

// ObserveJob records one processed queue job.
func (m *Metrics) ObserveJob(status string) {
	m.JobsProcessed.WithLabelValues(status).Inc()
}
