package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "commerce_facts"

// PipelineMetrics holds all Prometheus metrics of the batch commands. Metrics live on
// their own registry so a run can push exactly what it recorded.
type PipelineMetrics struct {
	registry *prometheus.Registry

	EventsTotal       *prometheus.CounterVec
	RecordsSkipped    *prometheus.CounterVec
	RecordsNormalized *prometheus.CounterVec
	TableRows         *prometheus.GaugeVec
	StageDuration     *prometheus.HistogramVec
	PIIRedactions     prometheus.Counter
	SpoolActive       prometheus.Gauge
	LastSuccess       prometheus.Gauge
}

// NewPipelineMetrics initializes and registers the pipeline metrics on a fresh registry.
func NewPipelineMetrics() *PipelineMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PipelineMetrics{
		registry: reg,
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of events written to the event store by source and result.",
		}, []string{"source", "result"}), // result: inserted, updated, spooled, failed
		RecordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_skipped_total",
			Help:      "Total number of input records or files skipped by reason.",
		}, []string{"source", "reason"}), // reason: malformed, missing_id, missing_input
		RecordsNormalized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "records_total",
			Help:      "Normalization outcomes per entity.",
		}, []string{"entity", "outcome"}), // outcome: input, output, duplicate, defaulted_amount, unparsable_date
		TableRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "warehouse",
			Name:      "table_rows",
			Help:      "Rows written to each warehouse table by the last run.",
		}, []string{"table"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		PIIRedactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pii_redactions_total",
			Help:      "Total number of payload values replaced by PII redaction.",
		}),
		SpoolActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "spool_active_gauge",
			Help:      "Indicates if events were spooled because the event store rejected them (1 for active, 0 for inactive).",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

// Registry exposes the registry the metrics are registered on.
func (m *PipelineMetrics) Registry() *prometheus.Registry { return m.registry }

// Push sends the collected metrics to a Pushgateway under job. An empty url is a no-op.
func (m *PipelineMetrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
