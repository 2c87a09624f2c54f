package cleanse

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/demoscrub/internal/canon"
)

// Metrics holds Prometheus metrics for the cleansing subsystem.
type Metrics struct {
	FieldsTotal    *prometheus.CounterVec
	FieldDuration  *prometheus.HistogramVec
	RecordsTotal   *prometheus.CounterVec
	ReviewTotal    prometheus.Counter
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	RunRecords     prometheus.Histogram
	RunReviewShare prometheus.Histogram
}

// NewMetrics registers and returns cleansing metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FieldsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demoscrub_fields_total",
			Help: "Field cleanses by field, outcome source, and validity.",
		}, []string{"field", "source", "valid"}),
		FieldDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demoscrub_field_duration_seconds",
			Help:    "Duration of single field cleanses in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms .. ~16s
		}, []string{"field", "source"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demoscrub_records_total",
			Help: "Cleansed records by confidence tier and review flag.",
		}, []string{"confidence", "needs_review"}),
		ReviewTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demoscrub_review_entries_total",
			Help: "Total review queue entries created.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demoscrub_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "demoscrub_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~2048s
		}),
		RunRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "demoscrub_run_records",
			Help:    "Records processed per pipeline run.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8), // 10 .. ~160k
		}),
		RunReviewShare: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "demoscrub_run_review_share",
			Help:    "Fraction of a run's records flagged for review.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 .. 1.0
		}),
	}

	reg.MustRegister(
		m.FieldsTotal,
		m.FieldDuration,
		m.RecordsTotal,
		m.ReviewTotal,
		m.RunsTotal,
		m.RunDuration,
		m.RunRecords,
		m.RunReviewShare,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnField: func(field canon.Field, source Source, valid bool, duration float64) {
			v := "true"
			if !valid {
				v = "false"
			}
			m.FieldsTotal.WithLabelValues(string(field), string(source), v).Inc()
			m.FieldDuration.WithLabelValues(string(field), string(source)).Observe(duration)
		},
		OnRecord: func(confidence Confidence, needsReview bool) {
			nr := "false"
			if needsReview {
				nr = "true"
				m.ReviewTotal.Inc()
			}
			m.RecordsTotal.WithLabelValues(string(confidence), nr).Inc()
		},
		OnRunComplete: func(summary *Summary, status RunStatus, duration float64) {
			m.RunsTotal.WithLabelValues(string(status)).Inc()
			m.RunDuration.Observe(duration)
			if summary != nil {
				m.RunRecords.Observe(float64(summary.TotalRecords))
				if summary.TotalRecords > 0 {
					m.RunReviewShare.Observe(float64(summary.NeedsReview) / float64(summary.TotalRecords))
				}
			}
		},
	}
}
