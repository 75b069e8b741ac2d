// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sqlstore implements store.Store on database/sql for PostgreSQL
(github.com/lib/pq) and SQLite (modernc.org/sqlite).

	conn, err := db.Open(ctx, db.Postgres, cfg.DatabaseURL)
	...
	if err := db.CreateSchema(ctx, conn); err != nil { ... }
	st := sqlstore.New(conn, db.Postgres)

Begin always succeeds on a healthy connection; this backend never reports
store.ErrTxUnsupported. Inside a transaction FindVote reads the row with
SELECT ... FOR UPDATE on PostgreSQL. SQLite connections opened through
db.Open use immediate transactions, which serialize writers instead.

# Error Mapping

Driver errors keep their original value and gain a store sentinel:

  - unique violation (SQLSTATE 23505, SQLITE_CONSTRAINT_UNIQUE):
    store.ErrDuplicateVote
  - SQLSTATE class 40, 55P03, SQLITE_BUSY, SQLITE_LOCKED and context
    deadlines: store.ErrTransient
  - sql.ErrNoRows: store.ErrNotFound
  - sql.ErrTxDone: store.ErrTxDone

Option sets are stored in vote.option_ids as ",a,b," (see
store.EncodeOptionIDs) so voters of one option are found with LIKE.
*/
package sqlstore
