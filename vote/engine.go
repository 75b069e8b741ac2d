// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package vote

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/danielhkuo/quickly-vote/apperr"
	"github.com/danielhkuo/quickly-vote/lifecycle"
	"github.com/danielhkuo/quickly-vote/metrics"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// Client-facing messages.
const (
	MsgOptionRequired  = "At least one option is required"
	MsgDuplicateOption = "Duplicate options are not allowed"
	MsgPollNotFound    = "Poll not found"
	MsgPollClosed      = "Poll is closed"
	MsgPollNotStarted  = "Poll has not started"
	MsgPollEnded       = "Poll has ended"
	MsgSingleChoice    = "Only one option can be selected"
	MsgInvalidOption   = "Invalid option"
	MsgAlreadyVoted    = "You have already voted in this poll"
	MsgNotVoted        = "You have not voted in this poll yet"
	MsgVoteNotFound    = "Vote not found"
	MsgRetry           = "Vote failed, please retry"
	MsgFailed          = "Vote failed"
)

const defaultAbortTimeout = 5 * time.Second

// errNoVote is raised inside a change unit when the vote disappeared
// between the pre-check and the transaction.
var errNoVote = errors.New("no vote to change")

// Selection is a validated request: the poll as loaded and the requested
// option ids in poll order.
type Selection struct {
	Poll      models.Poll
	OptionIDs []string
}

// Engine records votes. It holds no locks of its own; consistency comes
// from the store's transactions, unique index and version checks.
type Engine struct {
	store        store.Store
	now          func() time.Time
	log          *slog.Logger
	metrics      *metrics.Metrics
	abortTimeout time.Duration
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAbortTimeout bounds rollbacks and compensating writes, which run
// detached from the caller's context.
func WithAbortTimeout(d time.Duration) Option {
	return func(e *Engine) { e.abortTimeout = d }
}

func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		now:          time.Now,
		log:          slog.Default(),
		abortTimeout: defaultAbortTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Validate checks a vote request against the poll without writing any vote.
// The only side effect is persisting the close of a poll whose end time
// has passed.
func (e *Engine) Validate(ctx context.Context, pollID, voterID string, optionIDs []string) (Selection, error) {
	if voterID == "" {
		return Selection{}, apperr.Unauthenticated("")
	}

	requested, err := normalize(optionIDs)
	if err != nil {
		return Selection{}, err
	}

	poll, err := e.store.FindPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Selection{}, apperr.NotFound(MsgPollNotFound)
		}
		return Selection{}, e.storageError("validate", err, "poll_id", pollID)
	}

	now := e.now()
	switch lifecycle.Evaluate(poll, now) {
	case lifecycle.PhaseClosed:
		return Selection{}, apperr.Conflict(MsgPollClosed)
	case lifecycle.PhaseNotStarted:
		return Selection{}, apperr.Conflict(MsgPollNotStarted)
	case lifecycle.PhaseEnded:
		e.closeEnded(ctx, &poll, now)
		return Selection{}, apperr.Conflict(MsgPollEnded)
	}

	if !poll.AllowMultiple && len(requested) != 1 {
		return Selection{}, apperr.InvalidInput(MsgSingleChoice)
	}

	resolved := make([]string, 0, len(requested))
	for _, opt := range poll.Options {
		if _, ok := requested[opt.ID]; ok {
			resolved = append(resolved, opt.ID)
		}
	}
	if len(resolved) != len(requested) {
		return Selection{}, apperr.InvalidInput(MsgInvalidOption)
	}

	return Selection{Poll: poll, OptionIDs: resolved}, nil
}

// closeEnded persists the lazy close. Failure is logged only; the request
// is rejected either way.
func (e *Engine) closeEnded(ctx context.Context, poll *models.Poll, now time.Time) {
	changed, err := lifecycle.Reconcile(ctx, e.store, poll, now)
	if err != nil {
		e.log.Warn("lazy close failed", "poll_id", poll.ID, "error", err)
		return
	}
	if changed {
		e.metrics.LazyClose()
		e.log.Info("poll closed after end time", "poll_id", poll.ID)
	}
}

// normalize trims and lowercases ids and drops blanks. Stored option ids are
// lowercase UUIDs or ObjectID hex, so case never distinguishes two options.
// The result is a set; duplicates after normalizing are rejected.
func normalize(optionIDs []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(optionIDs))
	n := 0
	for _, id := range optionIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		n++
		set[id] = struct{}{}
	}
	if n == 0 {
		return nil, apperr.InvalidInput(MsgOptionRequired)
	}
	if len(set) != n {
		return nil, apperr.InvalidInput(MsgDuplicateOption)
	}
	return set, nil
}

// Cast records the first vote of voterID in pollID.
func (e *Engine) Cast(ctx context.Context, pollID, voterID string, optionIDs []string) (models.Vote, error) {
	sel, err := e.Validate(ctx, pollID, voterID, optionIDs)
	if err != nil {
		e.outcome("cast", err)
		return models.Vote{}, err
	}

	var cast models.Vote
	err = e.atomically(ctx, "cast", func(ctx context.Context, w store.Writer, direct bool) error {
		v, err := w.InsertVote(ctx, models.Vote{
			PollID:    sel.Poll.ID,
			VoterID:   voterID,
			OptionIDs: sel.OptionIDs,
			CreatedAt: e.now(),
		})
		if err != nil {
			return err
		}
		if err := w.IncrementCounters(ctx, sel.Poll.ID, len(sel.OptionIDs), plusOne(sel.OptionIDs)); err != nil {
			if direct {
				e.compensate(ctx, "cast", sel.Poll.ID, v.ID, func(ctx context.Context) error {
					return w.DeleteVote(ctx, v.ID)
				})
			}
			return err
		}
		cast = v
		return nil
	})
	if err != nil {
		// Two first casts in transactions can collide as a write conflict
		// instead of on the unique index. If the other one committed, the
		// caller has voted.
		if errors.Is(err, store.ErrTransient) && e.hasVote(ctx, sel.Poll.ID, voterID) {
			err = errors.Mark(err, store.ErrDuplicateVote)
		}
		err = e.classify("cast", err, sel.Poll.ID, voterID)
		e.outcome("cast", err)
		return models.Vote{}, err
	}

	e.outcome("cast", nil)
	e.log.Info("vote cast", "poll_id", sel.Poll.ID, "vote_id", cast.ID, "options", len(cast.OptionIDs))
	return cast, nil
}

func (e *Engine) hasVote(ctx context.Context, pollID, voterID string) bool {
	_, err := e.store.FindVote(ctx, pollID, voterID)
	return err == nil
}

// Change replaces the option set of voterID's vote in pollID. Requesting
// the set already recorded returns the vote without writing.
func (e *Engine) Change(ctx context.Context, pollID, voterID string, optionIDs []string) (models.Vote, error) {
	sel, err := e.Validate(ctx, pollID, voterID, optionIDs)
	if err != nil {
		e.outcome("change", err)
		return models.Vote{}, err
	}

	existing, err := e.store.FindVote(ctx, sel.Poll.ID, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.Conflict(MsgNotVoted)
		} else {
			err = e.classify("change", err, sel.Poll.ID, voterID)
		}
		e.outcome("change", err)
		return models.Vote{}, err
	}
	if sameSet(existing.OptionIDs, sel.OptionIDs) {
		e.metrics.VoteOutcome("change", "noop")
		return existing, nil
	}

	var changed models.Vote
	err = e.atomically(ctx, "change", func(ctx context.Context, w store.Writer, direct bool) error {
		current, err := w.FindVote(ctx, sel.Poll.ID, voterID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errNoVote
			}
			return err
		}
		if sameSet(current.OptionIDs, sel.OptionIDs) {
			changed = current
			return nil
		}

		totalDelta, deltas := diff(current.OptionIDs, sel.OptionIDs)
		if err := w.ReplaceVoteOptions(ctx, current.ID, current.Version, sel.OptionIDs); err != nil {
			return err
		}
		if err := w.IncrementCounters(ctx, sel.Poll.ID, totalDelta, deltas); err != nil {
			if direct {
				e.compensate(ctx, "change", sel.Poll.ID, current.ID, func(ctx context.Context) error {
					return w.ReplaceVoteOptions(ctx, current.ID, current.Version+1, current.OptionIDs)
				})
			}
			return err
		}

		changed = current
		changed.OptionIDs = append([]string(nil), sel.OptionIDs...)
		changed.Version = current.Version + 1
		return nil
	})
	if err != nil {
		err = e.classify("change", err, sel.Poll.ID, voterID)
		e.outcome("change", err)
		return models.Vote{}, err
	}

	e.outcome("change", nil)
	e.log.Info("vote changed", "poll_id", sel.Poll.ID, "vote_id", changed.ID, "options", len(changed.OptionIDs))
	return changed, nil
}

// MyVote returns voterID's vote in pollID.
func (e *Engine) MyVote(ctx context.Context, pollID, voterID string) (models.Vote, error) {
	if voterID == "" {
		return models.Vote{}, apperr.Unauthenticated("")
	}
	if _, err := e.store.FindPoll(ctx, pollID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Vote{}, apperr.NotFound(MsgPollNotFound)
		}
		return models.Vote{}, e.storageError("my_vote", err, "poll_id", pollID)
	}
	v, err := e.store.FindVote(ctx, pollID, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Vote{}, apperr.NotFound(MsgVoteNotFound)
		}
		return models.Vote{}, e.storageError("my_vote", err, "poll_id", pollID)
	}
	return v, nil
}

func plusOne(ids []string) map[string]int {
	deltas := make(map[string]int, len(ids))
	for _, id := range ids {
		deltas[id] = 1
	}
	return deltas
}

// diff returns the total delta and per-option deltas that move counts from
// old to next.
func diff(old, next []string) (int, map[string]int) {
	deltas := make(map[string]int)
	for _, id := range next {
		deltas[id]++
	}
	for _, id := range old {
		deltas[id]--
	}
	for id, d := range deltas {
		if d == 0 {
			delete(deltas, id)
		}
	}
	return len(next) - len(old), deltas
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
