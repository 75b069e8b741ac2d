// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store defines the storage contract consumed by the vote engine and
the poll service.

# Backends

  - sqlstore: PostgreSQL (lib/pq) or SQLite (modernc.org/sqlite)
  - mongostore: MongoDB, transactional only on replica sets
  - memstore: in-process, transactions optional

# Writers and Transactions

Writer carries the mutations that must move together (vote row plus
counters). Store and Tx both implement it:

	tx, err := s.Begin(ctx)
	if errors.Is(err, store.ErrTxUnsupported) {
		// run the same writes on s directly
	}

# Errors

Backends translate driver errors into the sentinels below with
errors.Mark, so errors.Is works while the driver error stays in the chain:

  - ErrNotFound
  - ErrDuplicateVote: unique (poll, voter) violated
  - ErrStaleVote: compare-and-swap on Vote.Version missed
  - ErrTxUnsupported: no multi-document transactions
  - ErrTransient: retryable (serialization, deadlock, busy, transient label)
  - ErrTxDone: Tx used after Commit or Rollback
*/
package store
