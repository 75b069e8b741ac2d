// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-vote/apperr"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/polls"
	"github.com/danielhkuo/quickly-vote/store"
	"github.com/danielhkuo/quickly-vote/store/memstore"
	"github.com/danielhkuo/quickly-vote/testutil"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*polls.Service, *memstore.Store) {
	t.Helper()
	st := memstore.New(memstore.Options{Transactions: true, Now: func() time.Time { return now }})
	svc := polls.NewService(st,
		polls.WithClock(func() time.Time { return now }),
		polls.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return svc, st
}

func requireKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
	if msg != "" {
		require.Equal(t, msg, apperr.MessageOf(err))
	}
}

func options(texts ...string) []models.CreatePollOptionRequest {
	out := make([]models.CreatePollOptionRequest, len(texts))
	for i, t := range texts {
		out[i] = models.CreatePollOptionRequest{Text: t}
	}
	return out
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)
	ends := now.Add(time.Hour)

	poll, err := svc.Create(context.Background(), "owner", models.CreatePollRequest{
		Title:         "  Lunch  ",
		Description:   " where? ",
		Options:       options(" Pizza ", "", "Sushi"),
		EndsAt:        &ends,
		AllowMultiple: true,
	})
	require.NoError(t, err)
	require.Equal(t, "Lunch", poll.Title)
	require.Equal(t, "where?", poll.Description)
	require.Equal(t, "owner", poll.CreatedBy)
	require.Equal(t, models.StatusOpen, poll.Status)
	require.Len(t, poll.Options, 2)
	require.Equal(t, "Pizza", poll.Options[0].Text)
	require.True(t, poll.AllowMultiple)
	require.Zero(t, poll.TotalVotes)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	past := now.Add(-time.Minute)
	later := now.Add(time.Hour)
	earlier := now.Add(30 * time.Minute)

	tests := []struct {
		name  string
		owner string
		req   models.CreatePollRequest
		kind  apperr.Kind
		msg   string
	}{
		{"no owner", "", models.CreatePollRequest{Title: "t", Options: options("a", "b")}, apperr.KindUnauthenticated, ""},
		{"blank title", "o", models.CreatePollRequest{Title: "  ", Options: options("a", "b")}, apperr.KindInvalidInput, "Title is required"},
		{"one option", "o", models.CreatePollRequest{Title: "t", Options: options("a", " ")}, apperr.KindInvalidInput, "At least 2 options are required"},
		{"case-insensitive duplicate", "o", models.CreatePollRequest{Title: "t", Options: options("Yes", "yes ")}, apperr.KindInvalidInput, "Options must be unique"},
		{"ends before start", "o", models.CreatePollRequest{Title: "t", Options: options("a", "b"), StartsAt: &later, EndsAt: &earlier}, apperr.KindInvalidInput, "endsAt must be after startsAt"},
		{"ends in past", "o", models.CreatePollRequest{Title: "t", Options: options("a", "b"), EndsAt: &past}, apperr.KindInvalidInput, "endsAt must be in the future"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.owner, tt.req)
			requireKind(t, err, tt.kind, tt.msg)
		})
	}
}

func TestGetPresentsEffectiveStatus(t *testing.T) {
	svc, st := newService(t)
	ends := now.Add(-time.Second)
	poll := testutil.CreateTestPoll(t, st, "owner", testutil.WithWindow(nil, &ends))

	got, err := svc.Get(context.Background(), poll.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusClosed, got.Status)
	require.True(t, got.ClosedAt.Equal(ends))

	// reads never write
	require.Zero(t, st.Writes())

	_, err = svc.Get(context.Background(), "missing")
	requireKind(t, err, apperr.KindNotFound, "Poll not found")
}

func TestListPaging(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := st.CreatePoll(ctx, models.Poll{
			Title:     fmt.Sprintf("poll %d", i),
			CreatedBy: "o",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			Options:   []models.Option{{Text: "a"}, {Text: "b"}},
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, polls.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 5, page.PageSize)
	require.Equal(t, 7, page.TotalCount)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 5)
	require.Equal(t, "poll 6", page.Items[0].Title)
	require.True(t, page.HasNextPage)
	require.False(t, page.HasPreviousPage)

	// past the end clamps to the last page
	page, err = svc.List(ctx, polls.ListParams{Page: 9, Order: "ASC"})
	require.NoError(t, err)
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 2)
	require.Equal(t, "poll 5", page.Items[0].Title)
	require.False(t, page.HasNextPage)
	require.True(t, page.HasPreviousPage)

	page, err = svc.List(ctx, polls.ListParams{PageSize: 100})
	require.NoError(t, err)
	require.Equal(t, 20, page.PageSize)
	require.Len(t, page.Items, 7)

	_, err = svc.List(ctx, polls.ListParams{Status: "PENDING"})
	requireKind(t, err, apperr.KindInvalidInput, "Invalid status")
}

func TestListStatusFilter(t *testing.T) {
	svc, st := newService(t)
	ended := now.Add(-time.Hour)
	testutil.CreateTestPoll(t, st, "o")
	testutil.CreateTestPoll(t, st, "o", testutil.WithWindow(nil, &ended))
	testutil.CreateTestPoll(t, st, "o", testutil.WithStatus(models.StatusClosed))

	open, err := svc.List(context.Background(), polls.ListParams{Status: "open"})
	require.NoError(t, err)
	require.Equal(t, 1, open.TotalCount)

	closed, err := svc.List(context.Background(), polls.ListParams{Status: "CLOSED"})
	require.NoError(t, err)
	require.Equal(t, 2, closed.TotalCount)
	for _, p := range closed.Items {
		require.Equal(t, models.StatusClosed, p.Status)
	}

	empty, err := polls.NewService(memstore.New(memstore.Options{})).List(context.Background(), polls.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 1, empty.TotalPages)
	require.Equal(t, 1, empty.Page)
	require.Empty(t, empty.Items)
}

func TestListSearch(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	for i, title := range []string{"Team Lunch", "Release name", "lunch spot"} {
		_, err := st.CreatePoll(ctx, models.Poll{
			Title:     title,
			CreatedBy: "o",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			Options:   []models.Option{{Text: "a"}, {Text: "b"}},
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, polls.ListParams{Search: " LUNCH "})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)
	require.Equal(t, "lunch spot", page.Items[0].Title)
	require.Equal(t, "Team Lunch", page.Items[1].Title)

	page, err = svc.List(ctx, polls.ListParams{Search: "   "})
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalCount)
}

func TestResults(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	poll := testutil.CreateTestPoll(t, st, "owner")

	res, err := svc.Results(ctx, poll.ID)
	require.NoError(t, err)
	require.Zero(t, res.TotalVotes)
	for _, o := range res.Options {
		require.Zero(t, o.Percent)
	}

	require.NoError(t, st.IncrementCounters(ctx, poll.ID, 4, map[string]int{poll.Options[0].ID: 3, poll.Options[1].ID: 1}))
	res, err = svc.Results(ctx, poll.ID)
	require.NoError(t, err)
	require.Equal(t, 4, res.TotalVotes)
	require.Equal(t, 75.0, res.Options[0].Percent)
	require.Equal(t, 25.0, res.Options[1].Percent)
	require.Equal(t, 0.0, res.Options[2].Percent)
	require.Equal(t, "Red", res.Options[0].Text)
}

func TestVoters(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	poll := testutil.CreateTestPoll(t, st, "owner")
	red := poll.Options[0].ID
	for i := 0; i < 3; i++ {
		_, err := st.InsertVote(ctx, models.Vote{
			PollID: poll.ID, VoterID: fmt.Sprintf("u%d", i), OptionIDs: []string{red},
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	page, err := svc.Voters(ctx, "caller", poll.ID, red, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"u2", "u1"}, page.Items)
	require.Equal(t, 3, page.TotalCount)
	require.Equal(t, 2, page.TotalPages)
	require.True(t, page.HasNextPage)

	page, err = svc.Voters(ctx, "caller", poll.ID, poll.Options[1].ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 20, page.PageSize)
	require.Empty(t, page.Items)
	require.NotNil(t, page.Items)

	_, err = svc.Voters(ctx, "", poll.ID, red, 1, 10)
	requireKind(t, err, apperr.KindUnauthenticated, "")
	_, err = svc.Voters(ctx, "caller", poll.ID, "nope", 1, 10)
	requireKind(t, err, apperr.KindInvalidInput, "Option not found")

	anon := testutil.CreateTestPoll(t, st, "owner", testutil.WithAnonymous())
	_, err = svc.Voters(ctx, "caller", anon.ID, anon.Options[0].ID, 1, 10)
	requireKind(t, err, apperr.KindForbidden, "Anonymous poll")
}

func TestClose(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	poll := testutil.CreateTestPoll(t, st, "owner")

	_, err := svc.Close(ctx, "intruder", poll.ID)
	requireKind(t, err, apperr.KindForbidden, "Only the poll owner can close it")

	closed, err := svc.Close(ctx, "owner", poll.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusClosed, closed.Status)
	require.True(t, closed.ClosedAt.Equal(now))
	writes := st.Writes()

	again, err := svc.Close(ctx, "owner", poll.ID)
	require.NoError(t, err)
	require.True(t, again.ClosedAt.Equal(now))
	require.Equal(t, writes, st.Writes())
}

// lateCloser closes the poll through the store right after the service's
// first read, leaving the service holding an OPEN copy.
type lateCloser struct {
	*memstore.Store
	at   time.Time
	once sync.Once
}

func (l *lateCloser) FindPoll(ctx context.Context, pollID string) (models.Poll, error) {
	poll, err := l.Store.FindPoll(ctx, pollID)
	l.once.Do(func() {
		if _, cerr := l.Store.ClosePoll(ctx, pollID, l.at); cerr != nil {
			panic(cerr)
		}
	})
	return poll, err
}

func TestCloseKeepsEarlierClose(t *testing.T) {
	_, st := newService(t)
	poll := testutil.CreateTestPoll(t, st, "owner")
	earlier := now.Add(-time.Minute)
	racer := &lateCloser{Store: st, at: earlier}
	svc := polls.NewService(racer,
		polls.WithClock(func() time.Time { return now }),
		polls.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	closed, err := svc.Close(context.Background(), "owner", poll.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusClosed, closed.Status)
	require.True(t, closed.ClosedAt.Equal(earlier), "closedAt = %v", closed.ClosedAt)

	stored, err := st.FindPoll(context.Background(), poll.ID)
	require.NoError(t, err)
	require.True(t, stored.ClosedAt.Equal(earlier))
}

func TestDelete(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	poll := testutil.CreateTestPoll(t, st, "owner")
	_, err := st.InsertVote(ctx, models.Vote{PollID: poll.ID, VoterID: "u1", OptionIDs: []string{poll.Options[0].ID}})
	require.NoError(t, err)

	err = svc.Delete(ctx, "owner", poll.ID)
	requireKind(t, err, apperr.KindInvalidInput, "Poll must be closed before deleting")

	_, err = svc.Close(ctx, "owner", poll.ID)
	require.NoError(t, err)
	err = svc.Delete(ctx, "intruder", poll.ID)
	requireKind(t, err, apperr.KindForbidden, "Only the poll owner can delete it")

	require.NoError(t, svc.Delete(ctx, "owner", poll.ID))
	require.Empty(t, st.Votes(poll.ID))
	_, err = svc.Get(ctx, poll.ID)
	requireKind(t, err, apperr.KindNotFound, "Poll not found")
}

func TestDeleteEndedPoll(t *testing.T) {
	svc, st := newService(t)
	ended := now.Add(-time.Minute)
	poll := testutil.CreateTestPoll(t, st, "owner", testutil.WithWindow(nil, &ended))

	require.NoError(t, svc.Delete(context.Background(), "owner", poll.ID))
	_, err := st.FindPoll(context.Background(), poll.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStorageFailureIsInternal(t *testing.T) {
	svc, st := newService(t)
	poll := testutil.CreateTestPoll(t, st, "owner")
	st.InjectFault(memstore.OpFindPoll, fmt.Errorf("connection reset"))

	_, err := svc.Get(context.Background(), poll.ID)
	requireKind(t, err, apperr.KindInternal, "Internal error")
}

func TestCancelledStorageIsRetryable(t *testing.T) {
	svc, st := newService(t)
	poll := testutil.CreateTestPoll(t, st, "owner")

	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		st.InjectFault(memstore.OpFindPoll, fmt.Errorf("find poll: %w", cause))
		_, err := svc.Get(context.Background(), poll.ID)
		requireKind(t, err, apperr.KindTransient, "Please retry")
	}
}
