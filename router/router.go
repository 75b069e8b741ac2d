// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/handlers"
	"github.com/danielhkuo/quickly-vote/metrics"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/polls"
	"github.com/danielhkuo/quickly-vote/store"
	"github.com/danielhkuo/quickly-vote/vote"
)

// NewRouter wires the services over st and registers every route. m may be
// nil, in which case nothing is recorded and /metrics is not served.
func NewRouter(st store.Store, cfg cliparse.Config, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	svc := polls.NewService(st)
	engine := vote.NewEngine(st, vote.WithMetrics(m))

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(svc)
	resultsHandler := handlers.NewResultsHandler(svc)
	votingHandler := handlers.NewVotingHandler(engine)

	observe := middleware.WithMetrics(m)
	public := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(observe(h))
	}
	requireUser := middleware.RequireUser([]byte(cfg.JWTSecret), cfg.CookieSecure)
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return public(requireUser(h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	// Polls
	mux.HandleFunc("POST /polls", authed(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls", public(pollHandler.ListPolls))
	mux.HandleFunc("POST /polls/{id}/close", authed(pollHandler.ClosePoll))
	mux.HandleFunc("DELETE /polls/{id}", authed(pollHandler.DeletePoll))

	// Reads
	mux.HandleFunc("GET /polls/{id}", public(resultsHandler.GetPoll))
	mux.HandleFunc("GET /polls/{id}/results", public(resultsHandler.GetResults))
	mux.HandleFunc("GET /polls/{id}/options/{optionId}/voters", authed(resultsHandler.ListVoters))

	// Votes
	mux.HandleFunc("POST /polls/{id}/votes", authed(votingHandler.CastVote))
	mux.HandleFunc("PUT /polls/{id}/votes", authed(votingHandler.ChangeVote))
	mux.HandleFunc("GET /polls/{id}/votes/me", authed(votingHandler.GetMyVote))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-vote API v1"))
	})

	return mux
}
