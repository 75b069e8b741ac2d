// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/danielhkuo/quickly-vote/store"
)

// codeIllegalOperation is what a standalone server answers to any command
// that carries a transaction number.
const codeIllegalOperation = 20

func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return errors.Mark(err, store.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return errors.Mark(err, store.ErrDuplicateVote)
	case txUnsupported(err):
		return errors.Mark(err, store.ErrTxUnsupported)
	case hasLabel(err, "TransientTransactionError"), hasLabel(err, "UnknownTransactionCommitResult"):
		return errors.Mark(err, store.ErrTransient)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return errors.Mark(err, store.ErrTransient)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(err, store.ErrTransient)
	}
	return err
}

func txUnsupported(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(codeIllegalOperation) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction numbers are only allowed") ||
		strings.Contains(msg, "transactions are not supported")
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(label)
}
