// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/testutil"
)

func TestGetPoll(t *testing.T) {
	h, st := setupMemory(t)
	poll := testutil.CreateTestPoll(t, st, "alice")

	req := testutil.MakeRequest("GET", "/polls/"+poll.ID, nil, nil)
	req.SetPathValue("id", poll.ID)
	w := httptest.NewRecorder()

	h.results.GetPoll(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.Poll
	testutil.AssertJSON(t, w, &got)
	if got.ID != poll.ID || got.Title != "Test Poll" || len(got.Options) != 3 {
		t.Errorf("Unexpected poll %+v", got)
	}
}

func TestGetPoll_EndedReadsClosed(t *testing.T) {
	h, st := setupMemory(t)
	ended := time.Now().Add(-time.Hour).UTC()
	poll := testutil.CreateTestPoll(t, st, "alice", testutil.WithWindow(nil, &ended))

	req := testutil.MakeRequest("GET", "/polls/"+poll.ID, nil, nil)
	req.SetPathValue("id", poll.ID)
	w := httptest.NewRecorder()

	h.results.GetPoll(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.Poll
	testutil.AssertJSON(t, w, &got)
	if got.Status != models.StatusClosed {
		t.Errorf("Expected CLOSED, got %s", got.Status)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(ended) {
		t.Errorf("Expected closedAt %v, got %v", ended, got.ClosedAt)
	}

	// The stored poll is untouched by a read
	stored, err := st.FindPoll(context.Background(), poll.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusOpen {
		t.Errorf("Expected stored status OPEN, got %s", stored.Status)
	}
}

func TestGetPoll_NotFound(t *testing.T) {
	h, _ := setupMemory(t)

	req := testutil.MakeRequest("GET", "/polls/nope", nil, nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()

	h.results.GetPoll(w, req)

	testutil.AssertStatus(t, w, http.StatusNotFound)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Error != "NOT_FOUND" || resp.Message != "Poll not found" {
		t.Errorf("Unexpected error %+v", resp)
	}
}

func TestGetResults(t *testing.T) {
	h, st := setupMemory(t)
	poll := testutil.CreateTestPoll(t, st, "alice")

	cast := func(user string, optionIDs ...string) {
		req := asUser(testutil.MakeRequest("POST", "/polls/"+poll.ID+"/votes", models.VoteRequest{OptionIDs: optionIDs}, nil), user)
		req.SetPathValue("id", poll.ID)
		w := httptest.NewRecorder()
		h.voting.CastVote(w, req)
		testutil.AssertStatus(t, w, http.StatusCreated)
	}
	cast("u1", poll.Options[0].ID)
	cast("u2", poll.Options[0].ID)
	cast("u3", poll.Options[0].ID)
	cast("u4", poll.Options[2].ID)

	req := testutil.MakeRequest("GET", "/polls/"+poll.ID+"/results", nil, nil)
	req.SetPathValue("id", poll.ID)
	w := httptest.NewRecorder()

	h.results.GetResults(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var results models.PollResults
	testutil.AssertJSON(t, w, &results)

	if results.TotalVotes != 4 {
		t.Errorf("Expected totalVotes 4, got %d", results.TotalVotes)
	}
	want := []struct {
		count   int
		percent float64
	}{{3, 75}, {0, 0}, {1, 25}}
	for i, opt := range results.Options {
		if opt.VoteCount != want[i].count || opt.Percent != want[i].percent {
			t.Errorf("Option %s: got %d (%.1f%%), want %d (%.1f%%)",
				opt.Text, opt.VoteCount, opt.Percent, want[i].count, want[i].percent)
		}
	}
}

func TestListVoters(t *testing.T) {
	h, st := setupMemory(t)
	poll := testutil.CreateTestPoll(t, st, "alice")
	red := poll.Options[0].ID

	for i := 0; i < 3; i++ {
		req := asUser(testutil.MakeRequest("POST", "/polls/"+poll.ID+"/votes", models.VoteRequest{OptionIDs: []string{red}}, nil), fmt.Sprintf("voter%d", i))
		req.SetPathValue("id", poll.ID)
		h.voting.CastVote(httptest.NewRecorder(), req)
	}

	list := func(user, optionID, query string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("GET", "/polls/"+poll.ID+"/options/"+optionID+"/voters"+query, nil, nil)
		req.SetPathValue("id", poll.ID)
		req.SetPathValue("optionId", optionID)
		if user != "" {
			req = asUser(req, user)
		}
		w := httptest.NewRecorder()
		h.results.ListVoters(w, req)
		return w
	}

	w := list("bob", red, "?pageSize=2")
	testutil.AssertStatus(t, w, http.StatusOK)
	var page models.VoterPage
	testutil.AssertJSON(t, w, &page)
	if page.TotalCount != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Errorf("Unexpected page %+v", page)
	}

	testutil.AssertStatus(t, list("", red, ""), http.StatusUnauthorized)
	testutil.AssertStatus(t, list("bob", "missing", ""), http.StatusBadRequest)
	testutil.AssertStatus(t, list("bob", red, "?page=abc"), http.StatusBadRequest)
}

func TestListVoters_AnonymousPoll(t *testing.T) {
	h, st := setupMemory(t)
	poll := testutil.CreateTestPoll(t, st, "alice", testutil.WithAnonymous())

	req := asUser(testutil.MakeRequest("GET", "/polls/"+poll.ID+"/options/x/voters", nil, nil), "alice")
	req.SetPathValue("id", poll.ID)
	req.SetPathValue("optionId", poll.Options[0].ID)
	w := httptest.NewRecorder()

	h.results.ListVoters(w, req)

	testutil.AssertStatus(t, w, http.StatusForbidden)
}
