// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Vote API server.

Quickly Vote runs single- and multiple-choice polls. Each authenticated user
gets one vote per poll and may change it while the poll is open; the poll's
per-option and total counters always agree with the recorded votes.

# Starting the Server

The server reads flags first, then the environment, then a .env file in the
working directory:

	JWT_SECRET=... DATABASE_URL=file:quickly_vote.db go run .

Or with flags:

	go run . -p 4000 -t postgres -d "postgres://..." -jwt-secret ...

# Configuration

Required settings:

  - JWT_SECRET (-jwt-secret): HMAC secret shared with the identity provider
  - DATABASE_URL (-d): connection string; not needed for -t memory

Optional settings:

  - PORT (-p): Server port (default: 4000)
  - DATABASE_TYPE (-t): sqlite, postgres, mongo or memory (default: sqlite)
  - MONGODB_DATABASE (-mongo-db): database name for mongo (default: quickly_vote)
  - DISABLE_TRANSACTIONS (-no-tx): memory backend without transactions
  - COOKIE_SECURE (-cookie-secure): accept the voting_token cookie over HTTPS only

# Architecture

  - vote: the vote recording engine (cast, change, my vote)
  - polls: poll creation, listing, results, close and delete
  - lifecycle: effective status and lazy close of ended polls
  - store: storage contract with sqlstore, mongostore and memstore backends
  - handlers, router, middleware: HTTP surface
  - auth: JWT identity
  - apperr: error kinds shared by services and HTTP
  - metrics: Prometheus collectors served on /metrics
  - db: SQL connection and schema
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
