package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grievance"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	mutations      *prometheus.CounterVec
	lastCycleStart prometheus.Gauge
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by domain error code",
		}, []string{"route", "method", "code"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "cycles_total",
			Help:      "Escalation cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "cycle_duration_seconds",
			Help:      "Time to evaluate and apply one escalation cycle",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "mutations_total",
			Help:      "SLA mutations by apply result",
		}, []string{"result"}),
		lastCycleStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Evaluation instant of the last escalation cycle",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration, m.errors,
		m.cycles, m.cycleDuration, m.mutations, m.lastCycleStart,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordCycle records a finished escalation cycle.
func (m *Metrics) RecordCycle(outcome string, at time.Time, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.lastCycleStart.Set(float64(at.Unix()))
}

// RecordCycleSkipped records a tick that did not run because another cycle held the guard.
func (m *Metrics) RecordCycleSkipped() {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues("skipped").Inc()
}

// RecordMutations counts applied and failed SLA mutations.
func (m *Metrics) RecordMutations(applied, failed int) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues("applied").Add(float64(applied))
	m.mutations.WithLabelValues("failed").Add(float64(failed))
}
