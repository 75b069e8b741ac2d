// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package vote

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/danielhkuo/quickly-vote/apperr"
	"github.com/danielhkuo/quickly-vote/store"
)

// unit is one vote write plus its counter update. direct is true when it
// runs on the store without a transaction, in which case the unit must
// undo its own partial work on failure.
type unit func(ctx context.Context, w store.Writer, direct bool) error

// atomically runs fn in a transaction. If the backend reports that it has
// no transactions (at Begin, on any statement or at Commit) the
// transaction is rolled back and fn runs once more directly on the store.
// Every other failure is returned after the rollback. Nothing is retried.
func (e *Engine) atomically(ctx context.Context, op string, fn unit) error {
	tx, err := e.store.Begin(ctx)
	if err == nil {
		err = fn(ctx, tx, false)
		if err == nil {
			err = tx.Commit(ctx)
			if err == nil {
				return nil
			}
		}
		e.abort(ctx, op, tx)
	}
	if !errors.Is(err, store.ErrTxUnsupported) {
		return err
	}

	e.log.Warn("transactions unsupported, writing without one", "op", op, "error", err)
	e.metrics.TxFallback(op)
	return fn(ctx, e.store, true)
}

// abort rolls tx back on a context that survives the caller's
// cancellation. ErrTxDone means the backend already ended it.
func (e *Engine) abort(ctx context.Context, op string, tx store.Tx) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.abortTimeout)
	defer cancel()
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, store.ErrTxDone) {
		e.log.Error("failed to roll back transaction", "op", op, "error", err)
	}
}

// compensate undoes the vote write of a direct unit whose counter update
// failed. If that fails too, counters no longer match the votes.
func (e *Engine) compensate(ctx context.Context, op, pollID, voteID string, undo func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.abortTimeout)
	defer cancel()
	if err := undo(ctx); err != nil {
		e.metrics.CounterDrift()
		e.log.Error("counter drift: compensating write failed",
			"op", op, "poll_id", pollID, "vote_id", voteID, "error", err)
		return
	}
	e.log.Warn("counter update failed, vote write undone", "op", op, "poll_id", pollID, "vote_id", voteID)
}

// classify turns a storage failure into the error returned to callers.
// Causes are logged and kept in the chain but never shown.
func (e *Engine) classify(op string, err error, pollID, voterID string) error {
	switch {
	case errors.Is(err, errNoVote):
		return apperr.Conflict(MsgNotVoted)
	case errors.Is(err, store.ErrDuplicateVote):
		return apperr.Wrap(apperr.KindConflict, MsgAlreadyVoted, err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, MsgPollNotFound, err)
	case isTransient(err):
		e.log.Warn("vote write failed, retryable", "op", op, "poll_id", pollID, "voter_id", voterID, "error", err)
		return apperr.Wrap(apperr.KindTransient, MsgRetry, err)
	default:
		e.log.Error("vote write failed", "op", op, "poll_id", pollID, "voter_id", voterID, "error", err)
		return apperr.Wrap(apperr.KindInternal, MsgFailed, err)
	}
}

// storageError classifies failed reads outside a write unit.
func (e *Engine) storageError(op string, err error, args ...any) error {
	if isTransient(err) {
		e.log.Warn("storage read failed, retryable", append([]any{"op", op, "error", err}, args...)...)
		return apperr.Wrap(apperr.KindTransient, MsgRetry, err)
	}
	e.log.Error("storage read failed", append([]any{"op", op, "error", err}, args...)...)
	return apperr.Wrap(apperr.KindInternal, MsgFailed, err)
}

func isTransient(err error) bool {
	return store.IsRetryable(err) || errors.Is(err, store.ErrStaleVote)
}

func (e *Engine) outcome(op string, err error) {
	if err == nil {
		e.metrics.VoteOutcome(op, "ok")
		return
	}
	e.metrics.VoteOutcome(op, apperr.KindOf(err).String())
}
