// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/danielhkuo/quickly-vote/apperr"
	"github.com/danielhkuo/quickly-vote/lifecycle"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

const (
	msgPollNotFound = "Poll not found"
	msgInternal     = "Internal error"
	msgRetry        = "Please retry"
)

// Page size limits for poll listings and voter listings.
const (
	DefaultPollPageSize  = 5
	MaxPollPageSize      = 20
	DefaultVoterPageSize = 20
	MaxVoterPageSize     = 50
)

// Service manages polls: creation, reads, results and the owner's close
// and delete. Votes go through vote.Engine.
type Service struct {
	store store.PollStore
	now   func() time.Time
	log   *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(st store.PollStore, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Create validates req and stores a new OPEN poll owned by owner.
func (s *Service) Create(ctx context.Context, owner string, req models.CreatePollRequest) (models.Poll, error) {
	if owner == "" {
		return models.Poll{}, apperr.Unauthenticated("")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return models.Poll{}, apperr.InvalidInput("Title is required")
	}

	var options []models.Option
	seen := map[string]bool{}
	for _, o := range req.Options {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			return models.Poll{}, apperr.InvalidInput("Options must be unique")
		}
		seen[key] = true
		options = append(options, models.Option{Text: text})
	}
	if len(options) < 2 {
		return models.Poll{}, apperr.InvalidInput("At least 2 options are required")
	}

	now := s.now()
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return models.Poll{}, apperr.InvalidInput("endsAt must be after startsAt")
	}
	if req.EndsAt != nil && !req.EndsAt.After(now) {
		return models.Poll{}, apperr.InvalidInput("endsAt must be in the future")
	}

	poll, err := s.store.CreatePoll(ctx, models.Poll{
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		CreatedBy:       owner,
		Status:          models.StatusOpen,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		AllowMultiple:   req.AllowMultiple,
		AnonymousVoting: req.AnonymousVoting,
		Options:         options,
		CreatedAt:       now,
	})
	if err != nil {
		return models.Poll{}, s.storageError("create poll", err)
	}

	s.log.Info("poll created", "poll_id", poll.ID, "options", len(poll.Options))
	return poll, nil
}

// Get returns the poll with its effective status.
func (s *Service) Get(ctx context.Context, pollID string) (models.Poll, error) {
	poll, err := s.find(ctx, pollID)
	if err != nil {
		return models.Poll{}, err
	}
	return lifecycle.Present(poll, s.now()), nil
}

// ListParams are the raw listing parameters; List normalizes them.
type ListParams struct {
	Status   string
	Search   string
	Page     int
	PageSize int
	Order    string
}

// List pages through polls by creation time, newest first unless Order is
// ASC. Status filters on effective status; Search matches title or
// description. Pages past the end are clamped
// to the last page.
func (s *Service) List(ctx context.Context, params ListParams) (models.PollPage, error) {
	filter := store.ListFilter{
		Search: strings.TrimSpace(params.Search),
		Now:    s.now(),
		Desc:   !strings.EqualFold(params.Order, models.OrderAsc),
	}
	if params.Status != "" {
		status := models.Status(strings.ToUpper(params.Status))
		if !status.Valid() {
			return models.PollPage{}, apperr.InvalidInput("Invalid status")
		}
		filter.Status = &status
	}

	size := clamp(params.PageSize, DefaultPollPageSize, MaxPollPageSize)
	page := max(params.Page, 1)
	filter.Offset, filter.Limit = (page-1)*size, size

	items, total, err := s.store.ListPolls(ctx, filter)
	if err != nil {
		return models.PollPage{}, s.storageError("list polls", err)
	}
	p := paginate(page, size, total)
	if p.page != page {
		filter.Offset = (p.page - 1) * size
		if items, total, err = s.store.ListPolls(ctx, filter); err != nil {
			return models.PollPage{}, s.storageError("list polls", err)
		}
		p = paginate(p.page, size, total)
	}

	out := models.PollPage{
		Items:           make([]models.Poll, 0, len(items)),
		Page:            p.page,
		PageSize:        size,
		TotalCount:      total,
		TotalPages:      p.totalPages,
		HasNextPage:     p.page < p.totalPages,
		HasPreviousPage: p.page > 1,
	}
	for _, poll := range items {
		out.Items = append(out.Items, lifecycle.Present(poll, filter.Now))
	}
	return out, nil
}

// Results reports counters with each option's share of totalVotes as a
// percentage.
func (s *Service) Results(ctx context.Context, pollID string) (models.PollResults, error) {
	poll, err := s.find(ctx, pollID)
	if err != nil {
		return models.PollResults{}, err
	}

	res := models.PollResults{
		PollID:     poll.ID,
		TotalVotes: poll.TotalVotes,
		Options:    make([]models.PollResultOption, 0, len(poll.Options)),
	}
	for _, o := range poll.Options {
		var percent float64
		if poll.TotalVotes > 0 {
			percent = float64(o.VoteCount) / float64(poll.TotalVotes) * 100
		}
		res.Options = append(res.Options, models.PollResultOption{
			OptionID:  o.ID,
			Text:      o.Text,
			VoteCount: o.VoteCount,
			Percent:   percent,
		})
	}
	return res, nil
}

// Voters lists who picked optionID, newest vote first. Anonymous polls
// refuse.
func (s *Service) Voters(ctx context.Context, caller, pollID, optionID string, page, pageSize int) (models.VoterPage, error) {
	if caller == "" {
		return models.VoterPage{}, apperr.Unauthenticated("")
	}
	poll, err := s.find(ctx, pollID)
	if err != nil {
		return models.VoterPage{}, err
	}
	if poll.AnonymousVoting {
		return models.VoterPage{}, apperr.Forbidden("Anonymous poll")
	}
	optionID = strings.ToLower(strings.TrimSpace(optionID))
	if _, ok := poll.Option(optionID); !ok {
		return models.VoterPage{}, apperr.InvalidInput("Option not found")
	}

	size := clamp(pageSize, DefaultVoterPageSize, MaxVoterPageSize)
	page = max(page, 1)

	voters, total, err := s.store.ListVoters(ctx, poll.ID, optionID, (page-1)*size, size)
	if err != nil {
		return models.VoterPage{}, s.storageError("list voters", err)
	}
	p := paginate(page, size, total)
	if p.page != page {
		if voters, total, err = s.store.ListVoters(ctx, poll.ID, optionID, (p.page-1)*size, size); err != nil {
			return models.VoterPage{}, s.storageError("list voters", err)
		}
		p = paginate(p.page, size, total)
	}
	if voters == nil {
		voters = []string{}
	}

	return models.VoterPage{
		Items:           voters,
		Page:            p.page,
		PageSize:        size,
		TotalCount:      total,
		TotalPages:      p.totalPages,
		HasNextPage:     p.page < p.totalPages,
		HasPreviousPage: p.page > 1,
	}, nil
}

// Close closes the poll for its owner. Closing a closed poll changes
// nothing; an earlier closedAt is kept.
func (s *Service) Close(ctx context.Context, caller, pollID string) (models.Poll, error) {
	if caller == "" {
		return models.Poll{}, apperr.Unauthenticated("")
	}
	poll, err := s.find(ctx, pollID)
	if err != nil {
		return models.Poll{}, err
	}
	if poll.CreatedBy != caller {
		return models.Poll{}, apperr.Forbidden("Only the poll owner can close it")
	}
	if poll.Status == models.StatusClosed {
		return poll, nil
	}

	changed, err := s.store.ClosePoll(ctx, poll.ID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Poll{}, apperr.NotFound(msgPollNotFound)
		}
		return models.Poll{}, s.storageError("close poll", err)
	}
	if changed {
		s.log.Info("poll closed", "poll_id", poll.ID)
	}
	return s.find(ctx, poll.ID)
}

// Delete removes a closed poll and its votes. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, caller, pollID string) error {
	if caller == "" {
		return apperr.Unauthenticated("")
	}
	poll, err := s.find(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.CreatedBy != caller {
		return apperr.Forbidden("Only the poll owner can delete it")
	}
	if lifecycle.EffectiveStatus(poll.Status, poll.StartsAt, poll.EndsAt, s.now()) != models.StatusClosed {
		return apperr.InvalidInput("Poll must be closed before deleting")
	}
	if err := s.store.DeletePoll(ctx, poll.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(msgPollNotFound)
		}
		return s.storageError("delete poll", err)
	}

	s.log.Info("poll deleted", "poll_id", poll.ID)
	return nil
}

func (s *Service) find(ctx context.Context, pollID string) (models.Poll, error) {
	poll, err := s.store.FindPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Poll{}, apperr.NotFound(msgPollNotFound)
		}
		return models.Poll{}, s.storageError("find poll", err)
	}
	return poll, nil
}

func (s *Service) storageError(op string, err error) error {
	if store.IsRetryable(err) {
		s.log.Warn("storage failed, retryable", "op", op, "error", err)
		return apperr.Wrap(apperr.KindTransient, msgRetry, err)
	}
	s.log.Error("storage failed", "op", op, "error", err)
	return apperr.Wrap(apperr.KindInternal, msgInternal, err)
}

type pageInfo struct {
	page       int
	totalPages int
}

// paginate clamps page to [1, totalPages]. An empty listing has one page.
func paginate(page, size, total int) pageInfo {
	totalPages := max((total+size-1)/size, 1)
	return pageInfo{page: min(max(page, 1), totalPages), totalPages: totalPages}
}

// clamp returns def for a zero size, otherwise size bounded to [1, limit].
func clamp(size, def, limit int) int {
	if size == 0 {
		return def
	}
	return min(max(size, 1), limit)
}
