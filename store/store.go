// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/danielhkuo/quickly-vote/models"
)

var (
	// ErrNotFound is returned when a poll or vote does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateVote is returned by InsertVote when (poll, voter) already
	// has a vote.
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrStaleVote is returned by ReplaceVoteOptions when the vote's version
	// moved since it was read.
	ErrStaleVote = errors.New("stale vote version")
	// ErrTxUnsupported signals that the backend cannot run multi-document
	// transactions. It may come from Begin, from any statement run on a Tx,
	// or from Commit.
	ErrTxUnsupported = errors.New("transactions unsupported")
	// ErrTransient marks failures that are safe to retry (serialization
	// failures, deadlocks, busy databases, transient transaction labels).
	ErrTransient = errors.New("transient storage failure")
	// ErrTxDone is returned when a finished Tx is used again.
	ErrTxDone = errors.New("transaction already finished")
)

// IsRetryable reports whether err is a storage failure the caller may retry:
// anything marked ErrTransient, or a cancelled or expired context.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ListFilter selects a page of polls. Status filters on effective status
// evaluated at Now. Search, when set, matches title or description.
type ListFilter struct {
	Status *models.Status
	Search string
	Now    time.Time
	Desc   bool
	Offset int
	Limit  int
}

// Writer holds the vote-row and counter mutations. Both Store and Tx
// implement it so the same unit of work can run inside or outside a
// transaction.
type Writer interface {
	// FindVote returns the vote for (pollID, voterID). Inside a Tx the row
	// is read for update where the backend supports it.
	FindVote(ctx context.Context, pollID, voterID string) (models.Vote, error)

	// InsertVote creates the vote and returns it with ID, Version and
	// CreatedAt populated. Fails with ErrDuplicateVote on (poll, voter).
	InsertVote(ctx context.Context, vote models.Vote) (models.Vote, error)

	// ReplaceVoteOptions swaps the option set of voteID if its version is
	// still expectVersion, bumping the version. ErrStaleVote otherwise.
	ReplaceVoteOptions(ctx context.Context, voteID string, expectVersion int, optionIDs []string) error

	// IncrementCounters adds totalDelta to the poll's totalVotes and each
	// optionDeltas[id] to that option's voteCount.
	IncrementCounters(ctx context.Context, pollID string, totalDelta int, optionDeltas map[string]int) error

	// DeleteVote removes a single vote. Only used to compensate a failed
	// non-transactional cast.
	DeleteVote(ctx context.Context, voteID string) error
}

// Tx is a unit of work. Rollback after Commit returns ErrTxDone.
type Tx interface {
	Writer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PollStore holds poll documents.
type PollStore interface {
	CreatePoll(ctx context.Context, poll models.Poll) (models.Poll, error)
	FindPoll(ctx context.Context, pollID string) (models.Poll, error)
	// ClosePoll moves an OPEN poll to CLOSED, keeping a closedAt that is
	// already set and using closedAt otherwise. It reports false without
	// writing when the poll is already CLOSED.
	ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error)
	ListPolls(ctx context.Context, filter ListFilter) ([]models.Poll, int, error)
	// DeletePoll removes the poll and all of its votes.
	DeletePoll(ctx context.Context, pollID string) error
	// ListVoters returns voter ids that selected optionID, newest first.
	ListVoters(ctx context.Context, pollID, optionID string, offset, limit int) ([]string, int, error)
}

// Store is a complete backend.
type Store interface {
	PollStore
	Writer
	// Begin starts a transaction or fails with ErrTxUnsupported.
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
