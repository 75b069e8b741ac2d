// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// writer implements store.Writer on either the pool or a transaction.
type writer struct {
	q       querier
	dialect db.Dialect
	now     func() time.Time
	inTx    bool
}

// lockClause is appended to reads of rows the transaction will update.
// SQLite has no row locks; its immediate transactions already hold the
// database write lock.
func (w writer) lockClause() string {
	if w.inTx && w.dialect == db.Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (w writer) FindVote(ctx context.Context, pollID, voterID string) (models.Vote, error) {
	var (
		vote      models.Vote
		optionIDs string
	)
	err := w.q.QueryRowContext(ctx, `
		SELECT id, poll_id, voter_id, option_ids, version, created_at
		FROM vote WHERE poll_id = $1 AND voter_id = $2`+w.lockClause(),
		pollID, voterID,
	).Scan(&vote.ID, &vote.PollID, &vote.VoterID, &optionIDs, &vote.Version, &vote.CreatedAt)
	if err != nil {
		return models.Vote{}, errors.Wrapf(classify(err), "vote for poll %s", pollID)
	}
	vote.OptionIDs = store.DecodeOptionIDs(optionIDs)
	return vote, nil
}

func (w writer) InsertVote(ctx context.Context, vote models.Vote) (models.Vote, error) {
	if len(vote.OptionIDs) == 0 {
		return models.Vote{}, errors.New("vote needs at least one option")
	}
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = w.now()
	}
	vote.CreatedAt = vote.CreatedAt.UTC()
	vote.Version = 1
	vote.OptionIDs = append([]string(nil), vote.OptionIDs...)

	_, err := w.q.ExecContext(ctx, `
		INSERT INTO vote (id, poll_id, voter_id, option_ids, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vote.ID, vote.PollID, vote.VoterID, store.EncodeOptionIDs(vote.OptionIDs), vote.Version, vote.CreatedAt)
	if err != nil {
		return models.Vote{}, errors.Wrapf(classify(err), "insert vote for poll %s", vote.PollID)
	}
	return vote, nil
}

func (w writer) ReplaceVoteOptions(ctx context.Context, voteID string, expectVersion int, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return errors.New("vote needs at least one option")
	}
	res, err := w.q.ExecContext(ctx, `
		UPDATE vote SET option_ids = $1, version = version + 1
		WHERE id = $2 AND version = $3
	`, store.EncodeOptionIDs(optionIDs), voteID, expectVersion)
	if err != nil {
		return errors.Wrapf(classify(err), "replace options of vote %s", voteID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(classify(err), "rows affected")
	}
	if n == 1 {
		return nil
	}

	var version int
	err = w.q.QueryRowContext(ctx, `SELECT version FROM vote WHERE id = $1`, voteID).Scan(&version)
	if err != nil {
		return errors.Wrapf(classify(err), "vote %s", voteID)
	}
	return errors.Wrapf(store.ErrStaleVote, "vote %s at version %d, expected %d", voteID, version, expectVersion)
}

// IncrementCounters updates options in id order so concurrent transactions
// lock rows in the same sequence.
func (w writer) IncrementCounters(ctx context.Context, pollID string, totalDelta int, optionDeltas map[string]int) error {
	res, err := w.q.ExecContext(ctx, `
		UPDATE poll SET total_votes = total_votes + $1, updated_at = $2 WHERE id = $3
	`, totalDelta, w.now(), pollID)
	if err != nil {
		return errors.Wrapf(classify(err), "update total of poll %s", pollID)
	}
	if err := expectRow(res, "poll "+pollID); err != nil {
		return err
	}

	ids := make([]string, 0, len(optionDeltas))
	for id := range optionDeltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res, err := w.q.ExecContext(ctx, `
			UPDATE option SET vote_count = vote_count + $1 WHERE id = $2 AND poll_id = $3
		`, optionDeltas[id], id, pollID)
		if err != nil {
			return errors.Wrapf(classify(err), "update count of option %s", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(classify(err), "rows affected")
		}
		if n == 0 {
			return errors.Newf("poll %s has no option %s", pollID, id)
		}
	}
	return nil
}

func (w writer) DeleteVote(ctx context.Context, voteID string) error {
	res, err := w.q.ExecContext(ctx, `DELETE FROM vote WHERE id = $1`, voteID)
	if err != nil {
		return errors.Wrapf(classify(err), "delete vote %s", voteID)
	}
	return expectRow(res, "vote "+voteID)
}

// Tx is a store.Tx over *sql.Tx.
type Tx struct {
	writer
	tx *sql.Tx
}

func (t *Tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(classify(err), "commit transaction")
	}
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return errors.Wrap(classify(err), "rollback transaction")
	}
	return nil
}

var _ store.Tx = (*Tx)(nil)
