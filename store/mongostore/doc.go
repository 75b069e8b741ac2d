// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package mongostore implements store.Store on MongoDB with the official
driver (go.mongodb.org/mongo-driver).

Polls live in the "polls" collection with their options and counters
embedded; votes live in "votes" with a unique (pollId, userId) index.
Identifiers are ObjectIDs rendered as hex strings.

	st, err := mongostore.Connect(ctx, cfg.DatabaseURL, cfg.MongoDatabase)

Transactions run on a driver session. A standalone server accepts the
session but rejects the first statement that carries a transaction number;
that rejection (code 20, or the "Transaction numbers are only allowed"
message) is marked store.ErrTxUnsupported so callers can fall back to
single-document writes. Duplicate-key errors become store.ErrDuplicateVote;
TransientTransactionError and UnknownTransactionCommitResult labels,
timeouts and network errors become store.ErrTransient.

Counter updates use $inc with array filters and guard the query so a
counter never goes below zero.
*/
package mongostore
