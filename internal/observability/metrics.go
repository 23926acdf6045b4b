package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the bot. A nil *Metrics is a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	interactions     *prometheus.CounterVec
	sweepRuns        *prometheus.CounterVec
	sweepItems       *prometheus.CounterVec
	sweepDuration    *prometheus.HistogramVec
	cacheReloads     *prometheus.CounterVec
	scheduledActions prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_http_requests_total",
			Help: "Admin API requests by route, method and status",
		}, []string{"path", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketbot_http_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_http_errors_total",
			Help: "Admin API errors by code",
		}, []string{"path", "method", "code"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_ticket_transitions_total",
			Help: "Ticket lifecycle events by type",
		}, []string{"event"}),
		interactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_interactions_total",
			Help: "Handled interactions by action kind and outcome",
		}, []string{"action", "outcome"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_sweep_runs_total",
			Help: "Sweeper runs by sweep name",
		}, []string{"sweep"}),
		sweepItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_sweep_items_total",
			Help: "Sweeper items by sweep name and result",
		}, []string{"sweep", "result"}),
		sweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketbot_sweep_duration_seconds",
			Help:    "Sweeper run duration",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		}, []string{"sweep"}),
		cacheReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_config_cache_reloads_total",
			Help: "Tenant config cache reloads by outcome",
		}, []string{"outcome"}),
		scheduledActions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ticketbot_scheduled_actions",
			Help: "Delayed ticket actions currently pending",
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts a lifecycle event.
func (m *Metrics) RecordTransition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}

// RecordInteraction counts a handled gateway interaction.
func (m *Metrics) RecordInteraction(action, outcome string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(action, outcome).Inc()
}

// RecordSweep records one sweeper run.
func (m *Metrics) RecordSweep(sweep string, acted, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(sweep).Inc()
	m.sweepItems.WithLabelValues(sweep, "acted").Add(float64(acted))
	m.sweepItems.WithLabelValues(sweep, "failed").Add(float64(failed))
	m.sweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
}

// RecordCacheReload counts a config cache reload.
func (m *Metrics) RecordCacheReload(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.cacheReloads.WithLabelValues(outcome).Inc()
}

// SetScheduledActions reports the number of pending delayed actions.
func (m *Metrics) SetScheduledActions(n int) {
	if m == nil {
		return
	}
	m.scheduledActions.Set(float64(n))
}
