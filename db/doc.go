// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens SQL connections and creates the schema.

# Connecting

Open takes a Dialect (Postgres or SQLite) and a DSN:

	conn, err := db.Open(ctx, db.SQLite, "file:quickly-vote.db")
	if err != nil {
		log.Fatal(err)
	}

SQLite DSNs without their own _pragma parameters get foreign keys, a busy
timeout, WAL journaling and immediate transactions appended.

# Schema Creation

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL is used for both dialects.

# Tables

  - poll: Poll metadata, time window, status and the total_votes counter
  - option: Options per poll in display order, each with vote_count
  - vote: One row per (poll_id, voter_id); option_ids holds the selected
    ids as ",a,b," and version is the compare-and-swap token

# Relationships

	poll 1──* option
	poll 1──* vote

All foreign keys use ON DELETE CASCADE. Counters carry CHECK (>= 0)
constraints, so a bad decrement fails instead of drifting below zero.
*/
package db
