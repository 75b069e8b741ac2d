// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a store.Store over database/sql. It always supports
// transactions.
type Store struct {
	writer
	db *sql.DB
}

// New wraps an open connection. The schema must already exist.
func New(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{
		writer: writer{q: conn, dialect: dialect, now: utcNow},
		db:     conn,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(classify(err), "begin transaction")
	}
	return &Tx{
		writer: writer{q: sqlTx, dialect: s.dialect, now: s.now, inTx: true},
		tx:     sqlTx,
	}, nil
}

// inTx runs fn in a transaction of its own, for multi-statement operations
// called outside a Tx.
func (s *Store) inTx(ctx context.Context, fn func(w writer) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(classify(err), "begin transaction")
	}
	defer sqlTx.Rollback()

	if err := fn(writer{q: sqlTx, dialect: s.dialect, now: s.now, inTx: true}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(classify(err), "commit transaction")
	}
	return nil
}

// IncrementCounters touches several rows, so outside a Tx it still runs as
// one transaction.
func (s *Store) IncrementCounters(ctx context.Context, pollID string, totalDelta int, optionDeltas map[string]int) error {
	return s.inTx(ctx, func(w writer) error {
		return w.IncrementCounters(ctx, pollID, totalDelta, optionDeltas)
	})
}

func (s *Store) CreatePoll(ctx context.Context, poll models.Poll) (models.Poll, error) {
	now := s.now()
	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	if poll.Status == "" {
		poll.Status = models.StatusOpen
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = now
	}
	poll.CreatedAt = poll.CreatedAt.UTC()
	poll.UpdatedAt = poll.CreatedAt
	poll.TotalVotes = 0
	poll.Options = append([]models.Option(nil), poll.Options...)

	err := s.inTx(ctx, func(w writer) error {
		_, err := w.q.ExecContext(ctx, `
			INSERT INTO poll (id, title, description, created_by, status, starts_at, ends_at, closed_at,
				allow_multiple, anonymous_voting, total_votes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)
		`, poll.ID, poll.Title, poll.Description, poll.CreatedBy, string(poll.Status),
			nullTime(poll.StartsAt), nullTime(poll.EndsAt), nullTime(poll.ClosedAt),
			poll.AllowMultiple, poll.AnonymousVoting, poll.CreatedAt, poll.UpdatedAt)
		if err != nil {
			return errors.Wrap(classify(err), "insert poll")
		}

		for i := range poll.Options {
			if poll.Options[i].ID == "" {
				poll.Options[i].ID = uuid.NewString()
			}
			poll.Options[i].VoteCount = 0
			_, err := w.q.ExecContext(ctx, `
				INSERT INTO option (id, poll_id, position, text, vote_count)
				VALUES ($1, $2, $3, $4, 0)
			`, poll.Options[i].ID, poll.ID, i, poll.Options[i].Text)
			if err != nil {
				return errors.Wrap(classify(err), "insert option")
			}
		}
		return nil
	})
	if err != nil {
		return models.Poll{}, err
	}
	return poll, nil
}

func (s *Store) FindPoll(ctx context.Context, pollID string) (models.Poll, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM poll WHERE id = $1`, pollID)
	poll, err := scanPoll(row)
	if err != nil {
		return models.Poll{}, errors.Wrapf(classify(err), "poll %s", pollID)
	}
	if poll.Options, err = s.loadOptions(ctx, pollID); err != nil {
		return models.Poll{}, err
	}
	return poll, nil
}

func (s *Store) ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE poll SET status = 'CLOSED', closed_at = COALESCE(closed_at, $1), updated_at = $2
		WHERE id = $3 AND status = 'OPEN'
	`, closedAt.UTC(), s.now(), pollID)
	if err != nil {
		return false, errors.Wrapf(classify(err), "close poll %s", pollID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(classify(err), "rows affected")
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM poll WHERE id = $1`, pollID).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(classify(err), "poll %s", pollID)
	}
	return false, nil
}

func (s *Store) ListPolls(ctx context.Context, filter store.ListFilter) ([]models.Poll, int, error) {
	var conds []string
	var args []any
	if filter.Status != nil {
		args = append(args, filter.Now.UTC())
		if *filter.Status == models.StatusClosed {
			conds = append(conds, `(status = 'CLOSED' OR (ends_at IS NOT NULL AND ends_at <= $1))`)
		} else {
			conds = append(conds, `status = 'OPEN' AND (ends_at IS NULL OR ends_at > $1)`)
		}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, likePattern(search))
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(LOWER(title) LIKE $%d ESCAPE '\' OR LOWER(description) LIKE $%d ESCAPE '\')`, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM poll`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(classify(err), "count polls")
	}

	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM poll%s ORDER BY created_at %s, id %s`, pollColumns, where, dir, dir)
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "list polls")
	}
	var polls []models.Poll
	skip := 0
	if filter.Limit <= 0 {
		skip = max(filter.Offset, 0)
	}
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, 0, errors.Wrap(classify(err), "scan poll")
		}
		if skip > 0 {
			skip--
			continue
		}
		polls = append(polls, poll)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "list polls")
	}

	for i := range polls {
		if polls[i].Options, err = s.loadOptions(ctx, polls[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return polls, total, nil
}

func (s *Store) DeletePoll(ctx context.Context, pollID string) error {
	return s.inTx(ctx, func(w writer) error {
		if _, err := w.q.ExecContext(ctx, `DELETE FROM vote WHERE poll_id = $1`, pollID); err != nil {
			return errors.Wrap(classify(err), "delete votes")
		}
		if _, err := w.q.ExecContext(ctx, `DELETE FROM option WHERE poll_id = $1`, pollID); err != nil {
			return errors.Wrap(classify(err), "delete options")
		}
		res, err := w.q.ExecContext(ctx, `DELETE FROM poll WHERE id = $1`, pollID)
		if err != nil {
			return errors.Wrap(classify(err), "delete poll")
		}
		return expectRow(res, "poll "+pollID)
	})
}

func (s *Store) ListVoters(ctx context.Context, pollID, optionID string, offset, limit int) ([]string, int, error) {
	pattern := store.OptionIDPattern(optionID)

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vote WHERE poll_id = $1 AND option_ids LIKE $2
	`, pollID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "count voters")
	}

	if limit <= 0 {
		limit = total
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT voter_id FROM vote
		WHERE poll_id = $1 AND option_ids LIKE $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, pollID, pattern, limit, max(offset, 0))
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "list voters")
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var voterID string
		if err := rows.Scan(&voterID); err != nil {
			return nil, 0, errors.Wrap(classify(err), "scan voter")
		}
		voters = append(voters, voterID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(classify(err), "list voters")
	}
	return voters, total, nil
}

func (s *Store) loadOptions(ctx context.Context, pollID string) ([]models.Option, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, vote_count FROM option WHERE poll_id = $1 ORDER BY position
	`, pollID)
	if err != nil {
		return nil, errors.Wrap(classify(err), "load options")
	}
	defer rows.Close()

	var options []models.Option
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.VoteCount); err != nil {
			return nil, errors.Wrap(classify(err), "scan option")
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(classify(err), "load options")
	}
	return options, nil
}

const pollColumns = `id, title, description, created_by, status, starts_at, ends_at, closed_at,
	allow_multiple, anonymous_voting, total_votes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPoll(row scanner) (models.Poll, error) {
	var (
		poll                       models.Poll
		status                     string
		startsAt, endsAt, closedAt sql.NullTime
	)
	err := row.Scan(&poll.ID, &poll.Title, &poll.Description, &poll.CreatedBy, &status,
		&startsAt, &endsAt, &closedAt, &poll.AllowMultiple, &poll.AnonymousVoting,
		&poll.TotalVotes, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		return models.Poll{}, err
	}
	poll.Status = models.Status(status)
	poll.StartsAt = timePtr(startsAt)
	poll.EndsAt = timePtr(endsAt)
	poll.ClosedAt = timePtr(closedAt)
	return poll, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// likePattern lowercases term and escapes LIKE wildcards for a substring
// match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(classify(err), "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(store.ErrNotFound, "%s", what)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
