// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.VoteOutcome("cast", "ok")
	m.VoteOutcome("cast", "ok")
	m.VoteOutcome("cast", "CONFLICT")
	m.TxFallback("change")
	m.LazyClose()
	m.CounterDrift()

	if got := promtest.ToFloat64(m.voteOutcomes.WithLabelValues("cast", "ok")); got != 2 {
		t.Errorf("cast/ok = %v, want 2", got)
	}
	if got := promtest.ToFloat64(m.txFallbacks.WithLabelValues("change")); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.lazyCloses); got != 1 {
		t.Errorf("lazy closes = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.counterDrift); got != 1 {
		t.Errorf("drift = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.VoteOutcome("cast", "ok")
	m.TxFallback("cast")
	m.LazyClose()
	m.CounterDrift()
	m.ObserveRequest("GET /health", http.StatusOK, time.Millisecond)
}

func TestHandler(t *testing.T) {
	m := New()
	m.LazyClose()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "quickly_vote_lazy_closes_total 1") {
		t.Errorf("lazy close counter missing from exposition:\n%s", w.Body.String())
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("POST /polls/{id}/votes", http.StatusCreated, 20*time.Millisecond)
	m.ObserveRequest("POST /polls/{id}/votes", http.StatusConflict, 5*time.Millisecond)

	if got := promtest.CollectAndCount(m.requests); got != 2 {
		t.Errorf("request series = %d, want 2", got)
	}
}
