// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-vote/lifecycle"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpBegin              Op = "begin"
	OpCommit             Op = "commit"
	OpFindPoll           Op = "find_poll"
	OpClosePoll          Op = "close_poll"
	OpFindVote           Op = "find_vote"
	OpInsertVote         Op = "insert_vote"
	OpReplaceVoteOptions Op = "replace_vote_options"
	OpIncrementCounters  Op = "increment_counters"
	OpDeleteVote         Op = "delete_vote"
)

type Options struct {
	// Transactions enables Begin. When false Begin fails with
	// store.ErrTxUnsupported, like a standalone MongoDB server.
	Transactions bool
	Now          func() time.Time
}

// Store keeps everything in maps behind a single-slot semaphore. A Tx holds
// the semaphore from Begin until Commit or Rollback, so transactions are
// serializable; plain calls take it per operation.
type Store struct {
	lock chan struct{}
	txs  bool
	now  func() time.Time

	polls   map[string]models.Poll
	votes   map[string]models.Vote
	byVoter map[voterKey]string

	faultMu sync.Mutex
	faults  map[Op][]error
	writes  int
}

type voterKey struct {
	pollID  string
	voterID string
}

func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		lock:    make(chan struct{}, 1),
		txs:     opts.Transactions,
		now:     now,
		polls:   make(map[string]models.Poll),
		votes:   make(map[string]models.Vote),
		byVoter: make(map[voterKey]string),
		faults:  make(map[Op][]error),
	}
}

// InjectFault makes the next call of op fail with err. Faults queue per op.
func (s *Store) InjectFault(op Op, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// Writes counts successful mutations of poll status, votes and counters.
func (s *Store) Writes() int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.writes
}

// Votes returns a snapshot of the votes recorded for pollID.
func (s *Store) Votes(pollID string) []models.Vote {
	s.lock <- struct{}{}
	defer func() { <-s.lock }()

	var out []models.Vote
	for _, v := range s.votes {
		if v.PollID == pollID {
			out = append(out, cloneVote(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) fault(op Op) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return queue[0]
}

func (s *Store) wrote() {
	s.faultMu.Lock()
	s.writes++
	s.faultMu.Unlock()
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Mark(ctx.Err(), store.ErrTransient)
	}
}

func (s *Store) release() {
	<-s.lock
}

// locked runs fn holding the store lock after consuming any fault for op.
func (s *Store) locked(ctx context.Context, op Op, fn func() error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	if err := s.fault(op); err != nil {
		return err
	}
	return fn()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := s.fault(OpBegin); err != nil {
		return nil, err
	}
	if !s.txs {
		return nil, errors.Wrap(store.ErrTxUnsupported, "memstore")
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &tx{s: s}, nil
}

func (s *Store) CreatePoll(ctx context.Context, poll models.Poll) (models.Poll, error) {
	err := s.locked(ctx, "", func() error {
		now := s.now()
		if poll.ID == "" {
			poll.ID = uuid.NewString()
		}
		if _, exists := s.polls[poll.ID]; exists {
			return errors.Newf("poll %s already exists", poll.ID)
		}
		if poll.Status == "" {
			poll.Status = models.StatusOpen
		}
		for i := range poll.Options {
			if poll.Options[i].ID == "" {
				poll.Options[i].ID = uuid.NewString()
			}
			poll.Options[i].VoteCount = 0
		}
		poll.TotalVotes = 0
		if poll.CreatedAt.IsZero() {
			poll.CreatedAt = now
		}
		poll.UpdatedAt = poll.CreatedAt
		s.polls[poll.ID] = clonePoll(poll)
		return nil
	})
	if err != nil {
		return models.Poll{}, err
	}
	return clonePoll(poll), nil
}

func (s *Store) FindPoll(ctx context.Context, pollID string) (models.Poll, error) {
	var poll models.Poll
	err := s.locked(ctx, OpFindPoll, func() error {
		p, ok := s.polls[pollID]
		if !ok {
			return errors.Wrapf(store.ErrNotFound, "poll %s", pollID)
		}
		poll = clonePoll(p)
		return nil
	})
	return poll, err
}

func (s *Store) ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error) {
	changed := false
	err := s.locked(ctx, OpClosePoll, func() error {
		p, ok := s.polls[pollID]
		if !ok {
			return errors.Wrapf(store.ErrNotFound, "poll %s", pollID)
		}
		if p.Status == models.StatusClosed {
			return nil
		}
		p.Status = models.StatusClosed
		if p.ClosedAt == nil {
			p.ClosedAt = cloneTime(&closedAt)
		}
		p.UpdatedAt = s.now()
		s.polls[pollID] = p
		s.wrote()
		changed = true
		return nil
	})
	return changed, err
}

func (s *Store) ListPolls(ctx context.Context, filter store.ListFilter) ([]models.Poll, int, error) {
	var page []models.Poll
	var total int
	err := s.locked(ctx, "", func() error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		var matched []models.Poll
		for _, p := range s.polls {
			if filter.Status != nil &&
				lifecycle.EffectiveStatus(p.Status, p.StartsAt, p.EndsAt, filter.Now) != *filter.Status {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(p.Title), search) &&
				!strings.Contains(strings.ToLower(p.Description), search) {
				continue
			}
			matched = append(matched, p)
		}
		sort.Slice(matched, func(i, j int) bool {
			a, b := matched[i], matched[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				if filter.Desc {
					return a.CreatedAt.After(b.CreatedAt)
				}
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		total = len(matched)
		for _, p := range window(matched, filter.Offset, filter.Limit) {
			page = append(page, clonePoll(p))
		}
		return nil
	})
	return page, total, err
}

func (s *Store) DeletePoll(ctx context.Context, pollID string) error {
	return s.locked(ctx, "", func() error {
		if _, ok := s.polls[pollID]; !ok {
			return errors.Wrapf(store.ErrNotFound, "poll %s", pollID)
		}
		for id, v := range s.votes {
			if v.PollID == pollID {
				delete(s.byVoter, voterKey{v.PollID, v.VoterID})
				delete(s.votes, id)
			}
		}
		delete(s.polls, pollID)
		s.wrote()
		return nil
	})
}

func (s *Store) ListVoters(ctx context.Context, pollID, optionID string, offset, limit int) ([]string, int, error) {
	var voters []string
	var total int
	err := s.locked(ctx, "", func() error {
		var matched []models.Vote
		for _, v := range s.votes {
			if v.PollID == pollID && contains(v.OptionIDs, optionID) {
				matched = append(matched, v)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID > matched[j].ID
		})
		total = len(matched)
		for _, v := range window(matched, offset, limit) {
			voters = append(voters, v.VoterID)
		}
		return nil
	})
	return voters, total, err
}

func (s *Store) FindVote(ctx context.Context, pollID, voterID string) (models.Vote, error) {
	var vote models.Vote
	err := s.locked(ctx, OpFindVote, func() (err error) {
		vote, err = s.findVote(pollID, voterID)
		return err
	})
	return vote, err
}

func (s *Store) InsertVote(ctx context.Context, vote models.Vote) (models.Vote, error) {
	err := s.locked(ctx, OpInsertVote, func() (err error) {
		vote, _, err = s.insertVote(vote)
		return err
	})
	return vote, err
}

func (s *Store) ReplaceVoteOptions(ctx context.Context, voteID string, expectVersion int, optionIDs []string) error {
	return s.locked(ctx, OpReplaceVoteOptions, func() error {
		_, err := s.replaceVoteOptions(voteID, expectVersion, optionIDs)
		return err
	})
}

func (s *Store) IncrementCounters(ctx context.Context, pollID string, totalDelta int, optionDeltas map[string]int) error {
	return s.locked(ctx, OpIncrementCounters, func() error {
		_, err := s.incrementCounters(pollID, totalDelta, optionDeltas)
		return err
	})
}

func (s *Store) DeleteVote(ctx context.Context, voteID string) error {
	return s.locked(ctx, OpDeleteVote, func() error {
		_, err := s.deleteVote(voteID)
		return err
	})
}

// The methods below assume the lock is held. Mutators return an undo func
// for transactions.

func (s *Store) findVote(pollID, voterID string) (models.Vote, error) {
	id, ok := s.byVoter[voterKey{pollID, voterID}]
	if !ok {
		return models.Vote{}, errors.Wrapf(store.ErrNotFound, "vote for poll %s", pollID)
	}
	return cloneVote(s.votes[id]), nil
}

func (s *Store) insertVote(vote models.Vote) (models.Vote, func(), error) {
	if _, ok := s.polls[vote.PollID]; !ok {
		return models.Vote{}, nil, errors.Wrapf(store.ErrNotFound, "poll %s", vote.PollID)
	}
	key := voterKey{vote.PollID, vote.VoterID}
	if _, dup := s.byVoter[key]; dup {
		return models.Vote{}, nil, errors.Wrapf(store.ErrDuplicateVote, "poll %s", vote.PollID)
	}
	if len(vote.OptionIDs) == 0 {
		return models.Vote{}, nil, errors.New("vote needs at least one option")
	}
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = s.now()
	}
	vote.Version = 1
	vote.OptionIDs = append([]string(nil), vote.OptionIDs...)

	s.votes[vote.ID] = vote
	s.byVoter[key] = vote.ID
	s.wrote()

	undo := func() {
		delete(s.votes, vote.ID)
		delete(s.byVoter, key)
	}
	return cloneVote(vote), undo, nil
}

func (s *Store) replaceVoteOptions(voteID string, expectVersion int, optionIDs []string) (func(), error) {
	v, ok := s.votes[voteID]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "vote %s", voteID)
	}
	if v.Version != expectVersion {
		return nil, errors.Wrapf(store.ErrStaleVote, "vote %s at version %d, expected %d", voteID, v.Version, expectVersion)
	}
	if len(optionIDs) == 0 {
		return nil, errors.New("vote needs at least one option")
	}
	prev := v
	v.OptionIDs = append([]string(nil), optionIDs...)
	v.Version++
	s.votes[voteID] = v
	s.wrote()

	return func() { s.votes[voteID] = prev }, nil
}

func (s *Store) incrementCounters(pollID string, totalDelta int, optionDeltas map[string]int) (func(), error) {
	p, ok := s.polls[pollID]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "poll %s", pollID)
	}
	prev := clonePoll(p)
	next := clonePoll(p)

	seen := 0
	for i := range next.Options {
		if d, ok := optionDeltas[next.Options[i].ID]; ok {
			next.Options[i].VoteCount += d
			seen++
			if next.Options[i].VoteCount < 0 {
				return nil, errors.Newf("option %s vote count would go negative", next.Options[i].ID)
			}
		}
	}
	if seen != len(optionDeltas) {
		return nil, errors.Newf("poll %s: counter update names unknown options", pollID)
	}
	next.TotalVotes += totalDelta
	if next.TotalVotes < 0 {
		return nil, errors.Newf("poll %s total votes would go negative", pollID)
	}

	s.polls[pollID] = next
	s.wrote()
	return func() { s.polls[pollID] = prev }, nil
}

func (s *Store) deleteVote(voteID string) (func(), error) {
	v, ok := s.votes[voteID]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "vote %s", voteID)
	}
	key := voterKey{v.PollID, v.VoterID}
	delete(s.votes, voteID)
	delete(s.byVoter, key)
	s.wrote()
	return func() {
		s.votes[voteID] = v
		s.byVoter[key] = voteID
	}, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func clonePoll(p models.Poll) models.Poll {
	p.Options = append([]models.Option(nil), p.Options...)
	p.StartsAt = cloneTime(p.StartsAt)
	p.EndsAt = cloneTime(p.EndsAt)
	p.ClosedAt = cloneTime(p.ClosedAt)
	return p
}

func cloneVote(v models.Vote) models.Vote {
	v.OptionIDs = append([]string(nil), v.OptionIDs...)
	return v
}

var _ store.Store = (*Store)(nil)
