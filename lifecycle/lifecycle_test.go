// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-vote/models"
)

// fakeCloser holds one stored poll and applies the conditional close to it.
type fakeCloser struct {
	stored models.Poll
	calls  int
	err    error
}

func (f *fakeCloser) ClosePoll(_ context.Context, _ string, closedAt time.Time) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.stored.Status == models.StatusClosed {
		return false, nil
	}
	f.stored.Status = models.StatusClosed
	if f.stored.ClosedAt == nil {
		f.stored.ClosedAt = &closedAt
	}
	return true, nil
}

func (f *fakeCloser) FindPoll(context.Context, string) (models.Poll, error) {
	return f.stored, nil
}

func ptr(t time.Time) *time.Time { return &t }

func TestPhaseAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		status   models.Status
		startsAt *time.Time
		endsAt   *time.Time
		want     Phase
	}{
		{"open no window", models.StatusOpen, nil, nil, PhaseOpen},
		{"open inside window", models.StatusOpen, ptr(past), ptr(future), PhaseOpen},
		{"not started", models.StatusOpen, ptr(future), nil, PhaseNotStarted},
		{"ended", models.StatusOpen, nil, ptr(past), PhaseEnded},
		{"ends exactly now", models.StatusOpen, nil, ptr(now), PhaseEnded},
		{"closed wins over window", models.StatusClosed, ptr(future), ptr(future), PhaseClosed},
		{"starts exactly now", models.StatusOpen, ptr(now), nil, PhaseOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhaseAt(tt.status, tt.startsAt, tt.endsAt, now); got != tt.want {
				t.Errorf("PhaseAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()

	if got := EffectiveStatus(models.StatusOpen, nil, ptr(now.Add(-time.Second)), now); got != models.StatusClosed {
		t.Errorf("expected ended poll to be closed, got %s", got)
	}
	if got := EffectiveStatus(models.StatusOpen, ptr(now.Add(time.Hour)), nil, now); got != models.StatusOpen {
		t.Errorf("not-started poll should still present as open, got %s", got)
	}
	if got := EffectiveStatus(models.StatusClosed, nil, nil, now); got != models.StatusClosed {
		t.Errorf("expected closed, got %s", got)
	}
}

func TestReconcile(t *testing.T) {
	now := time.Now()

	t.Run("persists ended poll once", func(t *testing.T) {
		poll := models.Poll{ID: "p1", Status: models.StatusOpen, EndsAt: ptr(now.Add(-time.Minute))}
		c := &fakeCloser{stored: poll}

		changed, err := Reconcile(context.Background(), c, &poll, now)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if !changed || c.calls != 1 {
			t.Fatalf("expected one write, changed=%v calls=%d", changed, c.calls)
		}
		if poll.Status != models.StatusClosed || poll.ClosedAt == nil || !poll.ClosedAt.Equal(now) {
			t.Errorf("poll not updated in place: %+v", poll)
		}

		changed, _ = Reconcile(context.Background(), c, &poll, now)
		if changed || c.calls != 1 {
			t.Error("second Reconcile should be a no-op")
		}
	})

	t.Run("keeps existing closedAt", func(t *testing.T) {
		earlier := now.Add(-time.Hour)
		poll := models.Poll{ID: "p2", Status: models.StatusOpen, EndsAt: ptr(now.Add(-time.Minute)), ClosedAt: &earlier}
		c := &fakeCloser{stored: poll}

		if _, err := Reconcile(context.Background(), c, &poll, now); err != nil {
			t.Fatal(err)
		}
		if !c.stored.ClosedAt.Equal(earlier) || !poll.ClosedAt.Equal(earlier) {
			t.Errorf("closedAt overwritten: stored %v, poll %v", c.stored.ClosedAt, poll.ClosedAt)
		}
	})

	t.Run("closed elsewhere first", func(t *testing.T) {
		first := now.Add(-30 * time.Second)
		poll := models.Poll{ID: "p5", Status: models.StatusOpen, EndsAt: ptr(now.Add(-time.Minute))}
		c := &fakeCloser{stored: poll}
		c.stored.Status = models.StatusClosed
		c.stored.ClosedAt = &first

		changed, err := Reconcile(context.Background(), c, &poll, now)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if changed {
			t.Error("expected no transition when the poll was already closed")
		}
		if poll.Status != models.StatusClosed || poll.ClosedAt == nil || !poll.ClosedAt.Equal(first) {
			t.Errorf("poll should carry the first close, got %+v", poll)
		}
		if !c.stored.ClosedAt.Equal(first) {
			t.Errorf("stored closedAt overwritten: %v", c.stored.ClosedAt)
		}
	})

	t.Run("open poll untouched", func(t *testing.T) {
		poll := models.Poll{ID: "p3", Status: models.StatusOpen}
		c := &fakeCloser{stored: poll}
		if changed, _ := Reconcile(context.Background(), c, &poll, now); changed || c.calls != 0 {
			t.Error("open poll should not be written")
		}
	})

	t.Run("write failure leaves poll unchanged", func(t *testing.T) {
		poll := models.Poll{ID: "p4", Status: models.StatusOpen, EndsAt: ptr(now.Add(-time.Minute))}
		c := &fakeCloser{stored: poll, err: errors.New("db down")}

		changed, err := Reconcile(context.Background(), c, &poll, now)
		if err == nil || changed {
			t.Fatal("expected error")
		}
		if poll.Status != models.StatusOpen {
			t.Error("poll mutated despite failed write")
		}
		if Evaluate(poll, now) != PhaseEnded {
			t.Error("decision must still say ended")
		}
	})
}

func TestPresent(t *testing.T) {
	now := time.Now()
	endsAt := now.Add(-time.Minute)
	poll := models.Poll{ID: "p", Status: models.StatusOpen, EndsAt: &endsAt}

	got := Present(poll, now)
	if got.Status != models.StatusClosed {
		t.Errorf("Present() status = %s", got.Status)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(endsAt) {
		t.Errorf("Present() closedAt = %v, want %v", got.ClosedAt, endsAt)
	}
	if poll.Status != models.StatusOpen {
		t.Error("Present() mutated its argument")
	}
}
