// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package memstore

import (
	"context"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// tx owns the store lock until it finishes. Mutations apply immediately and
// record undo steps; Rollback replays them newest first.
type tx struct {
	s    *Store
	undo []func()
	done bool
}

func (t *tx) step(op Op, fn func() (func(), error)) error {
	if t.done {
		return store.ErrTxDone
	}
	if err := t.s.fault(op); err != nil {
		return err
	}
	undo, err := fn()
	if err != nil {
		return err
	}
	if undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

func (t *tx) FindVote(_ context.Context, pollID, voterID string) (models.Vote, error) {
	var vote models.Vote
	err := t.step(OpFindVote, func() (func(), error) {
		var err error
		vote, err = t.s.findVote(pollID, voterID)
		return nil, err
	})
	return vote, err
}

func (t *tx) InsertVote(_ context.Context, vote models.Vote) (models.Vote, error) {
	var inserted models.Vote
	err := t.step(OpInsertVote, func() (func(), error) {
		v, undo, err := t.s.insertVote(vote)
		inserted = v
		return undo, err
	})
	return inserted, err
}

func (t *tx) ReplaceVoteOptions(_ context.Context, voteID string, expectVersion int, optionIDs []string) error {
	return t.step(OpReplaceVoteOptions, func() (func(), error) {
		return t.s.replaceVoteOptions(voteID, expectVersion, optionIDs)
	})
}

func (t *tx) IncrementCounters(_ context.Context, pollID string, totalDelta int, optionDeltas map[string]int) error {
	return t.step(OpIncrementCounters, func() (func(), error) {
		return t.s.incrementCounters(pollID, totalDelta, optionDeltas)
	})
}

func (t *tx) DeleteVote(_ context.Context, voteID string) error {
	return t.step(OpDeleteVote, func() (func(), error) {
		return t.s.deleteVote(voteID)
	})
}

// Commit fails with an injected OpCommit fault after undoing the work, the
// way a server aborts a transaction whose commit it rejects.
func (t *tx) Commit(context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	if err := t.s.fault(OpCommit); err != nil {
		t.finish(true)
		return err
	}
	t.finish(false)
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	t.finish(true)
	return nil
}

func (t *tx) finish(rollback bool) {
	if rollback {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
	}
	t.undo = nil
	t.done = true
	t.s.release()
}
