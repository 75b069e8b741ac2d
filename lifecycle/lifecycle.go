// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"time"

	"github.com/danielhkuo/quickly-vote/models"
)

// Phase is the voting state of a poll at a given instant.
type Phase int

const (
	// PhaseOpen accepts votes.
	PhaseOpen Phase = iota
	// PhaseNotStarted is open but before startsAt.
	PhaseNotStarted
	// PhaseEnded is stored as open but endsAt has passed; the close has not
	// been persisted yet.
	PhaseEnded
	// PhaseClosed is stored as closed.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseNotStarted:
		return "not_started"
	case PhaseEnded:
		return "ended"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Closer persists the close of a poll. ClosePoll only writes when the stored
// poll is still OPEN and reports whether it did.
type Closer interface {
	ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error)
	FindPoll(ctx context.Context, pollID string) (models.Poll, error)
}

// EffectiveStatus computes the status a poll should be presented with.
// A poll whose endsAt is at or before now is closed regardless of what is
// stored.
func EffectiveStatus(status models.Status, startsAt, endsAt *time.Time, now time.Time) models.Status {
	if status == models.StatusClosed {
		return models.StatusClosed
	}
	if endsAt != nil && !now.Before(*endsAt) {
		return models.StatusClosed
	}
	return models.StatusOpen
}

// PhaseAt classifies (status, startsAt, endsAt) at now. Stored CLOSED wins,
// then a future startsAt, then a passed endsAt.
func PhaseAt(status models.Status, startsAt, endsAt *time.Time, now time.Time) Phase {
	if status == models.StatusClosed {
		return PhaseClosed
	}
	if startsAt != nil && now.Before(*startsAt) {
		return PhaseNotStarted
	}
	if endsAt != nil && !now.Before(*endsAt) {
		return PhaseEnded
	}
	return PhaseOpen
}

// Evaluate is PhaseAt over a poll.
func Evaluate(poll models.Poll, now time.Time) Phase {
	return PhaseAt(poll.Status, poll.StartsAt, poll.EndsAt, now)
}

// Reconcile persists the lazy close of an ended poll and updates poll in
// place. It reports whether this call wrote the transition. When another
// writer closed the poll first, poll is refreshed from the store so the
// first closedAt wins. Callers treat the error as best effort: the decision
// already follows from Evaluate.
func Reconcile(ctx context.Context, closer Closer, poll *models.Poll, now time.Time) (bool, error) {
	if Evaluate(*poll, now) != PhaseEnded {
		return false, nil
	}

	changed, err := closer.ClosePoll(ctx, poll.ID, now)
	if err != nil {
		return false, err
	}
	if !changed {
		stored, err := closer.FindPoll(ctx, poll.ID)
		if err != nil {
			return false, err
		}
		*poll = stored
		return false, nil
	}

	poll.Status = models.StatusClosed
	if poll.ClosedAt == nil {
		closedAt := now
		poll.ClosedAt = &closedAt
	}
	return true, nil
}

// Present returns a copy of poll carrying its effective status, for read
// paths that must not wait for a persisted close.
func Present(poll models.Poll, now time.Time) models.Poll {
	if poll.Status == models.StatusClosed {
		return poll
	}
	if EffectiveStatus(poll.Status, poll.StartsAt, poll.EndsAt, now) == models.StatusClosed {
		poll.Status = models.StatusClosed
		if poll.ClosedAt == nil {
			endsAt := *poll.EndsAt
			poll.ClosedAt = &endsAt
		}
	}
	return poll
}
