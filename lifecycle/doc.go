// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package lifecycle decides whether a poll is accepting votes.

Polls are stored OPEN or CLOSED. A poll with an endsAt in the past is closed
even if nothing has written that yet; the first caller to notice persists it:

	switch lifecycle.Evaluate(poll, now) {
	case lifecycle.PhaseEnded:
		if _, err := lifecycle.Reconcile(ctx, store, &poll, now); err != nil {
			slog.Warn("failed to persist poll close", "error", err)
		}
		// reject regardless of err
	}

EffectiveStatus and Evaluate are pure functions of the stored fields and the
clock. Reconcile is the only side effect and is best effort.
*/
package lifecycle
