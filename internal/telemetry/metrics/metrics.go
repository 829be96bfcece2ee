// Package metrics provides Prometheus instrumentation for the engine's
// pipeline: run, check, connector, triggered-rule, LLM and trend-ingest
// counters, gauges and histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors the pipeline reports to.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	TargetsInFlight prometheus.Gauge

	ChecksTotal   *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec
	ChecksSkipped *prometheus.CounterVec

	ConnectorQueriesTotal  *prometheus.CounterVec
	ConnectorQueryDuration *prometheus.HistogramVec
	ConnectorReconnects    *prometheus.CounterVec

	TriggeredRulesTotal *prometheus.CounterVec
	HealthScore         *prometheus.GaugeVec

	LLMCallsTotal   *prometheus.CounterVec
	LLMCallDuration prometheus.Histogram
	LLMTokensTotal  *prometheus.CounterVec

	TrendIngestTotal *prometheus.CounterVec
}

// New creates a Metrics instance registered against the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a custom
// registerer, useful for isolated tests.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_runs_total",
				Help: "Total number of target runs, by technology and outcome",
			},
			[]string{"technology", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthcheck_run_duration_seconds",
				Help:    "Run duration in seconds, by technology",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"technology"},
		),
		TargetsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "healthcheck_targets_in_flight",
				Help: "Current number of targets being processed by the worker pool",
			},
		),

		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_checks_total",
				Help: "Total number of checks executed, by plugin and status",
			},
			[]string{"plugin", "check_id", "status"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthcheck_check_duration_seconds",
				Help:    "Check execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"plugin", "check_id"},
		),
		ChecksSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_checks_skipped_total",
				Help: "Total number of checks skipped, by reason",
			},
			[]string{"plugin", "reason"},
		),

		ConnectorQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_connector_queries_total",
				Help: "Total number of Connector.query calls, by technology and error kind",
			},
			[]string{"technology", "error_kind"},
		),
		ConnectorQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthcheck_connector_query_duration_seconds",
				Help:    "Connector query duration in seconds",
				Buckets: []float64{.005, .025, .1, .5, 1, 5, 15, 30},
			},
			[]string{"technology"},
		),
		ConnectorReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_connector_reconnects_total",
				Help: "Total number of connector reconnect attempts",
			},
			[]string{"technology", "outcome"},
		),

		TriggeredRulesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_triggered_rules_total",
				Help: "Total number of triggered rules, by severity",
			},
			[]string{"severity"},
		),
		HealthScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "healthcheck_health_score",
				Help: "Most recent health score per target",
			},
			[]string{"technology", "cluster_name"},
		),

		LLMCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_llm_calls_total",
				Help: "Total number of LLM adapter calls, by outcome",
			},
			[]string{"outcome"},
		),
		LLMCallDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "healthcheck_llm_call_duration_seconds",
				Help:    "LLM call wall-clock duration in seconds",
				Buckets: []float64{.5, 1, 5, 15, 30, 60, 120},
			},
		),
		LLMTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_llm_tokens_total",
				Help: "Total reported LLM tokens, by direction (input/output)",
			},
			[]string{"direction"},
		),

		TrendIngestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthcheck_trend_ingest_total",
				Help: "Total trend ingest attempts, by outcome",
			},
			[]string{"outcome"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RunsTotal, m.RunDuration, m.TargetsInFlight,
			m.ChecksTotal, m.CheckDuration, m.ChecksSkipped,
			m.ConnectorQueriesTotal, m.ConnectorQueryDuration, m.ConnectorReconnects,
			m.TriggeredRulesTotal, m.HealthScore,
			m.LLMCallsTotal, m.LLMCallDuration, m.LLMTokensTotal,
			m.TrendIngestTotal,
		)
	}

	return m
}

// RecordCheck records one check's outcome and duration.
func (m *Metrics) RecordCheck(plugin, checkID, status string, duration time.Duration) {
	m.ChecksTotal.WithLabelValues(plugin, checkID, status).Inc()
	m.CheckDuration.WithLabelValues(plugin, checkID).Observe(duration.Seconds())
}

// RecordConnectorQuery records one Connector.query call.
func (m *Metrics) RecordConnectorQuery(technology, errorKind string, duration time.Duration) {
	m.ConnectorQueriesTotal.WithLabelValues(technology, errorKind).Inc()
	m.ConnectorQueryDuration.WithLabelValues(technology).Observe(duration.Seconds())
}
