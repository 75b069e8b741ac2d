// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 4000)
  - DatabaseType: sqlite, postgres, mongo or memory (default: sqlite)
  - DatabaseURL: Connection string (required unless memory)
  - MongoDatabase: Database name for the mongo backend (default: quickly_vote)
  - JWTSecret: HMAC secret shared with the identity provider (required)
  - DisableTransactions: Memory backend only; exercises the non-atomic path
  - CookieSecure: Reject the token cookie on plain HTTP

# CLI Flags

	-p              Server port
	-t              Database type
	-d              Database URL
	-mongo-db       MongoDB database name
	-jwt-secret     JWT secret
	-no-tx          Disable memory-backend transactions
	-cookie-secure  Secure cookies only

# Environment Variables

Flags fall back to environment variables:

	PORT                  → -p
	DATABASE_TYPE         → -t
	DATABASE_URL          → -d
	MONGODB_DATABASE      → -mongo-db
	JWT_SECRET            → -jwt-secret
	DISABLE_TRANSACTIONS  → -no-tx
	COOKIE_SECURE         → -cookie-secure

CLI flags take precedence over environment variables. main loads a .env
file first when one exists.

# Validation

ParseFlags returns an error if:

  - DATABASE_URL is missing for a non-memory backend
  - JWT_SECRET is missing
  - DATABASE_TYPE is unknown
  - PORT or a boolean variable does not parse
*/
package cliparse
