// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/quickly-vote/store"
)

// classify marks driver errors with the store sentinel they stand for. The
// original error stays in the chain for logging.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errors.Mark(err, store.ErrNotFound)
	case errors.Is(err, sql.ErrTxDone):
		return errors.Mark(err, store.ErrTxDone)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(err, store.ErrTransient)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return errors.Mark(err, store.ErrDuplicateVote)
		case pqErr.Code.Class() == "40": // serialization_failure, deadlock_detected
			return errors.Mark(err, store.ErrTransient)
		case pqErr.Code == "55P03": // lock_not_available
			return errors.Mark(err, store.ErrTransient)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Mark(err, store.ErrDuplicateVote)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE constraint failed"):
			return errors.Mark(err, store.ErrDuplicateVote)
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return errors.Mark(err, store.ErrTransient)
		}
	}
	return err
}
