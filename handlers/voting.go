// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/vote"
)

type VotingHandler struct {
	engine *vote.Engine
}

func NewVotingHandler(engine *vote.Engine) *VotingHandler {
	return &VotingHandler{engine: engine}
}

// CastVote handles POST /polls/{id}/votes
// One vote per user per poll; a second cast answers 409.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	v, err := h.engine.Cast(r.Context(), r.PathValue("id"), middleware.UserID(r), req.OptionIDs)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, v)
}

// ChangeVote handles PUT /polls/{id}/votes
// Replaces the caller's selection; counters move by the difference only.
func (h *VotingHandler) ChangeVote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	v, err := h.engine.Change(r.Context(), r.PathValue("id"), middleware.UserID(r), req.OptionIDs)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, v)
}

// GetMyVote handles GET /polls/{id}/votes/me
func (h *VotingHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.MyVote(r.Context(), r.PathValue("id"), middleware.UserID(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, v)
}
