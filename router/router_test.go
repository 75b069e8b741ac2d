// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/metrics"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store/memstore"
	"github.com/danielhkuo/quickly-vote/testutil"
)

func newTestRouter(t *testing.T) (*http.ServeMux, *memstore.Store) {
	t.Helper()
	st := memstore.New(memstore.Options{Transactions: true})
	return NewRouter(st, testutil.GetTestConfig(), metrics.New()), st
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	expected := "quickly-vote API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)

	// 400, 401 and 404 are all valid here; 405 means the route is missing
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/polls"},
		{"GET", "/polls"},
		{"GET", "/polls/test-id"},
		{"GET", "/polls/test-id/results"},
		{"GET", "/polls/test-id/options/opt-id/voters"},
		{"POST", "/polls/test-id/close"},
		{"DELETE", "/polls/test-id"},
		{"POST", "/polls/test-id/votes"},
		{"PUT", "/polls/test-id/votes"},
		{"GET", "/polls/test-id/votes/me"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"PUT", "/polls/test-id"},
		{"DELETE", "/polls/test-id/votes"},
		{"GET", "/polls/test-id/close"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	mux, st := newTestRouter(t)
	poll := testutil.CreateTestPoll(t, st, "alice")

	protected := []struct {
		method string
		path   string
		body   interface{}
	}{
		{"POST", "/polls", models.CreatePollRequest{Title: "T"}},
		{"POST", "/polls/" + poll.ID + "/votes", models.VoteRequest{OptionIDs: []string{poll.Options[0].ID}}},
		{"PUT", "/polls/" + poll.ID + "/votes", models.VoteRequest{OptionIDs: []string{poll.Options[0].ID}}},
		{"GET", "/polls/" + poll.ID + "/votes/me", nil},
		{"POST", "/polls/" + poll.ID + "/close", nil},
		{"DELETE", "/polls/" + poll.ID, nil},
		{"GET", "/polls/" + poll.ID + "/options/" + poll.Options[0].ID + "/voters", nil},
	}

	for _, tc := range protected {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, testutil.MakeRequest(tc.method, tc.path, tc.body, nil))
			testutil.AssertStatus(t, w, http.StatusUnauthorized)
		})
	}

	if n := len(st.Votes(poll.ID)); n != 0 {
		t.Errorf("Expected no votes, got %d", n)
	}
}

func TestPathParameterExtraction(t *testing.T) {
	mux, st := newTestRouter(t)
	poll := testutil.CreateTestPoll(t, st, "alice")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/polls/"+poll.ID, nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.Poll
	testutil.AssertJSON(t, w, &got)
	if got.ID != poll.ID {
		t.Errorf("Expected poll %s, got %s", poll.ID, got.ID)
	}
}

// TestVoteOverHTTP drives a cast and a change through the full middleware
// chain with real tokens, then checks the metrics endpoint saw them
func TestVoteOverHTTP(t *testing.T) {
	mux, st := newTestRouter(t)
	poll := testutil.CreateTestPoll(t, st, "alice")
	bob := testutil.AuthHeader(t, "bob")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID+"/votes",
		models.VoteRequest{OptionIDs: []string{poll.Options[0].ID}}, bob))
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID+"/votes",
		models.VoteRequest{OptionIDs: []string{poll.Options[1].ID}}, bob))
	testutil.AssertStatus(t, w, http.StatusConflict)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("PUT", "/polls/"+poll.ID+"/votes",
		models.VoteRequest{OptionIDs: []string{poll.Options[1].ID}}, bob))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/polls/"+poll.ID+"/votes/me", nil, bob))
	testutil.AssertStatus(t, w, http.StatusOK)
	var mine models.Vote
	testutil.AssertJSON(t, w, &mine)
	if mine.VoterID != "bob" || mine.OptionIDs[0] != poll.Options[1].ID {
		t.Errorf("Unexpected vote %+v", mine)
	}

	testutil.AssertCounters(t, st, poll.ID, st.Votes(poll.ID))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	body := w.Body.String()
	for _, want := range []string{
		`quickly_vote_vote_operations_total{op="cast",outcome="ok"} 1`,
		`quickly_vote_vote_operations_total{op="cast",outcome="CONFLICT"} 1`,
		`quickly_vote_vote_operations_total{op="change",outcome="ok"} 1`,
		`route="POST /polls/{id}/votes"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestCookieAuth(t *testing.T) {
	mux, st := newTestRouter(t)
	poll := testutil.CreateTestPoll(t, st, "alice")

	header := testutil.AuthHeader(t, "carol")
	token := strings.TrimPrefix(header["Authorization"], "Bearer ")

	req := testutil.MakeRequest("POST", "/polls/"+poll.ID+"/votes",
		models.VoteRequest{OptionIDs: []string{poll.Options[2].ID}}, nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)
}
