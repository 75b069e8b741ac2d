// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quickly_vote"

// Metrics holds the service's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	voteOutcomes *prometheus.CounterVec
	txFallbacks  *prometheus.CounterVec
	lazyCloses   prometheus.Counter
	counterDrift prometheus.Counter
	requests     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		voteOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_operations_total",
			Help:      "Vote writes by operation and outcome kind.",
		}, []string{"op", "outcome"}),
		txFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_fallbacks_total",
			Help:      "Vote writes that ran without a transaction because the backend has none.",
		}, []string{"op"}),
		lazyCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lazy_closes_total",
			Help:      "Polls closed on access after their end time passed.",
		}),
		counterDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_drift_incidents_total",
			Help:      "Non-transactional writes whose compensation failed, leaving counters inconsistent.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.voteOutcomes,
		m.requests,
		m.txFallbacks,
		m.lazyCloses,
		m.counterDrift,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) VoteOutcome(op, outcome string) {
	if m == nil {
		return
	}
	m.voteOutcomes.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) TxFallback(op string) {
	if m == nil {
		return
	}
	m.txFallbacks.WithLabelValues(op).Inc()
}

func (m *Metrics) LazyClose() {
	if m == nil {
		return
	}
	m.lazyCloses.Inc()
}

func (m *Metrics) CounterDrift() {
	if m == nil {
		return
	}
	m.counterDrift.Inc()
}

// ObserveRequest records one served request. route is the mux pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}
