// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
	"github.com/danielhkuo/quickly-vote/store/sqlstore"
)

// TestJWTSecret signs every token minted by AuthHeader
const TestJWTSecret = "test-jwt-secret"

// SetupTestDB creates a fresh SQLite database file with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.SQLite, "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// SetupTestStore returns a sqlstore backed by SetupTestDB
func SetupTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	return sqlstore.New(SetupTestDB(t), db.SQLite)
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          4000,
		DatabaseType:  cliparse.BackendMemory,
		MongoDatabase: "quickly_vote_test",
		JWTSecret:     TestJWTSecret,
	}
}

// PollOption adjusts a poll before CreateTestPoll stores it
type PollOption func(*models.Poll)

// WithMultiple allows several options per vote
func WithMultiple() PollOption {
	return func(p *models.Poll) { p.AllowMultiple = true }
}

// WithAnonymous hides voter lists
func WithAnonymous() PollOption {
	return func(p *models.Poll) { p.AnonymousVoting = true }
}

// WithWindow sets startsAt and endsAt; either may be nil
func WithWindow(startsAt, endsAt *time.Time) PollOption {
	return func(p *models.Poll) {
		p.StartsAt = startsAt
		p.EndsAt = endsAt
	}
}

// WithStatus stores the poll with the given status
func WithStatus(status models.Status) PollOption {
	return func(p *models.Poll) { p.Status = status }
}

// CreateTestPoll stores an OPEN poll owned by owner with options Red, Green
// and Blue
func CreateTestPoll(t *testing.T, st store.PollStore, owner string, opts ...PollOption) models.Poll {
	t.Helper()

	poll := models.Poll{
		Title:     "Test Poll",
		CreatedBy: owner,
		Status:    models.StatusOpen,
		Options:   []models.Option{{Text: "Red"}, {Text: "Green"}, {Text: "Blue"}},
	}
	for _, opt := range opts {
		opt(&poll)
	}

	created, err := st.CreatePoll(context.Background(), poll)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return created
}

// AssertCounters fails the test unless the poll's counters match the votes
// recorded for it
func AssertCounters(t *testing.T, st store.PollStore, pollID string, votes []models.Vote) {
	t.Helper()

	poll, err := st.FindPoll(context.Background(), pollID)
	if err != nil {
		t.Fatalf("Failed to load poll: %v", err)
	}

	want := map[string]int{}
	total := 0
	for _, v := range votes {
		total += len(v.OptionIDs)
		for _, id := range v.OptionIDs {
			want[id]++
		}
	}
	if poll.TotalVotes != total {
		t.Errorf("totalVotes = %d, want %d", poll.TotalVotes, total)
	}
	if sum := poll.OptionVoteSum(); sum != poll.TotalVotes {
		t.Errorf("option counts sum to %d, totalVotes is %d", sum, poll.TotalVotes)
	}
	for _, opt := range poll.Options {
		if opt.VoteCount != want[opt.ID] {
			t.Errorf("option %s voteCount = %d, want %d", opt.Text, opt.VoteCount, want[opt.ID])
		}
	}
}

// AuthHeader returns an Authorization header for userID signed with
// TestJWTSecret
func AuthHeader(t *testing.T, userID string) map[string]string {
	t.Helper()

	token, err := auth.SignToken([]byte(TestJWTSecret), auth.Identity{UserID: userID}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
