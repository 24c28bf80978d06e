// Package metrics holds the Prometheus collectors shared by the batch run and the dashboard.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "bestbets"

// Metrics is a private registry plus the collectors written by the pipeline and dashboard.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	recordsFetched *prometheus.CounterVec
	matches        *prometheus.CounterVec
	unmatched      *prometheus.CounterVec
	opportunities  *prometheus.GaugeVec
	invalidInputs  prometheus.Counter
	runFailures    *prometheus.CounterVec
	lastSuccess    prometheus.Gauge

	snapshotsConsumed prometheus.Counter
	apiRequests       *prometheus.CounterVec
}

// New creates a registry with every collector registered
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		recordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Forecast records and markets fetched per source.",
		}, []string{"source", "market_type"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Resolved forecast names by market type and match method.",
		}, []string{"market_type", "method"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_total",
			Help:      "Unresolved forecasts and markets.",
		}, []string{"side", "market_type"}),
		opportunities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "opportunities",
			Help:      "Reported opportunities of the last run.",
		}, []string{"market_type"}),
		invalidInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_inputs_total",
			Help:      "Records excluded for values outside [0,1].",
		}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Aborted runs by failing source.",
		}, []string{"source"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
		snapshotsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_snapshots_consumed_total",
			Help:      "Feed snapshots cached by the dashboard consumer.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Dashboard API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		m.stageDuration,
		m.recordsFetched,
		m.matches,
		m.unmatched,
		m.opportunities,
		m.invalidInputs,
		m.runFailures,
		m.lastSuccess,
		m.snapshotsConsumed,
		m.apiRequests,
	)

	return m
}

// WithRuntimeCollectors adds the Go runtime and process collectors, for long-running processes
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddFetched counts fetched records
func (m *Metrics) AddFetched(source, marketType string, n int) {
	if m == nil {
		return
	}
	m.recordsFetched.WithLabelValues(source, marketType).Add(float64(n))
}

// AddMatch counts one resolved name
func (m *Metrics) AddMatch(marketType, method string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(marketType, method).Inc()
}

// AddUnmatched counts unresolved entries; side is "forecast" or "market"
func (m *Metrics) AddUnmatched(side, marketType string, n int) {
	if m == nil {
		return
	}
	m.unmatched.WithLabelValues(side, marketType).Add(float64(n))
}

// SetOpportunities records the reported opportunities per market type
func (m *Metrics) SetOpportunities(counts map[string]int) {
	if m == nil {
		return
	}
	m.opportunities.Reset()
	for marketType, n := range counts {
		m.opportunities.WithLabelValues(marketType).Set(float64(n))
	}
}

// AddInvalidInputs counts records excluded from EV
func (m *Metrics) AddInvalidInputs(n int) {
	if m == nil {
		return
	}
	m.invalidInputs.Add(float64(n))
}

// RunFailed counts an aborted run
func (m *Metrics) RunFailed(source string) {
	if m == nil {
		return
	}
	m.runFailures.WithLabelValues(source).Inc()
}

// RunSucceeded stamps the completion time
func (m *Metrics) RunSucceeded(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}

// SnapshotConsumed counts one cached feed snapshot
func (m *Metrics) SnapshotConsumed() {
	if m == nil {
		return
	}
	m.snapshotsConsumed.Inc()
}

// APIRequest counts one dashboard request
func (m *Metrics) APIRequest(route string, code int) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(route, fmt.Sprintf("%d", code)).Inc()
}

// Push sends the registry to a Pushgateway under job
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
