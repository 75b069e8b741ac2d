// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package vote records votes: at most one per (poll, voter), with the poll's
per-option and total counters kept equal to what the votes say.

# Operations

	e := vote.NewEngine(st, vote.WithLogger(log), vote.WithMetrics(m))

	v, err := e.Cast(ctx, pollID, userID, []string{optionID})
	v, err = e.Change(ctx, pollID, userID, []string{otherID})
	v, err = e.MyVote(ctx, pollID, userID)

Validate runs first for Cast and Change: option ids are trimmed, blanks
dropped and duplicates rejected; the poll must exist, be open, have started
and not have ended; single-choice polls take exactly one option; every id
must belong to the poll. A poll found past its end time is closed in
storage on the way (best effort) and the request is rejected with "Poll
has ended".

# Atomicity

A cast inserts the vote and increments the counters. A change re-reads the
vote inside the transaction, swaps its option set with a version check and
applies the difference between the row it read and the request. Both run
as one store.Tx.

When the backend has no transactions (store.ErrTxUnsupported from Begin,
from a statement or from Commit) the transaction is rolled back and the
same unit runs directly on the store. On that path a failed counter update
is compensated: a cast deletes its vote, a change restores the previous
options. A failed compensation is logged at ERROR as counter drift. A crash
between the two writes can still leave counters off by one vote.

Rollbacks and compensations run on a context detached from the caller,
bounded by WithAbortTimeout, so a cancelled request never leaves a
transaction open.

# Errors

All errors are *apperr.Error:

	InvalidInput  validation
	NotFound      "Poll not found"
	Conflict      poll state, "You have already voted in this poll",
	              "You have not voted in this poll yet"
	Transient     "Vote failed, please retry" (serialization failures,
	              transient transaction errors, version conflicts, deadlines)
	Internal      "Vote failed"

Storage causes stay in the error chain for logging; clients only see the
message. The engine never retries on its own.
*/
package vote
