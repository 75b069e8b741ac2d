// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package metrics exposes Prometheus counters for the vote engine.

	m := metrics.New()
	mux.Handle("GET /metrics", m.Handler())

Collectors:

  - quickly_vote_vote_operations_total{op, outcome}: op is cast or change,
    outcome is ok, noop or the apperr kind of the failure
  - quickly_vote_tx_fallbacks_total{op}: writes run without a transaction
  - quickly_vote_lazy_closes_total: ended polls closed on access
  - quickly_vote_counter_drift_incidents_total: failed compensations
  - quickly_vote_http_request_duration_seconds{route, code}: request latency

Go runtime and process collectors are registered on the same registry.
*/
package metrics
