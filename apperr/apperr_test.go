// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apperr

import (
	"context"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("pq: connection reset")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", cause, KindInternal},
		{"conflict", Conflict("already voted"), KindConflict},
		{"wrapped transient", errors.Wrap(Wrap(KindTransient, "retry", cause), "cast"), KindTransient},
		{"not found", NotFound("Poll not found"), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindTransient, "Vote failed, please retry", context.DeadlineExceeded)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected wrapped cause to be reachable")
	}
	if err.Error() != "Vote failed, please retry" {
		t.Errorf("Error() leaked cause: %q", err.Error())
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(errors.New("dial tcp 10.0.0.3:5432: i/o timeout")); got != "Internal error" {
		t.Errorf("unclassified error leaked detail: %q", got)
	}
	if got := MessageOf(InvalidInput("Invalid option")); got != "Invalid option" {
		t.Errorf("MessageOf() = %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindTransient, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := HTTPStatus(tt.kind); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}
