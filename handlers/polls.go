// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/polls"
)

type PollHandler struct {
	polls *polls.Service
}

func NewPollHandler(svc *polls.Service) *PollHandler {
	return &PollHandler{polls: svc}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.polls.Create(r.Context(), middleware.UserID(r), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// ListPolls handles GET /polls?status=&search=&page=&pageSize=&order=
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	pageSize, ok := queryInt(w, r, "pageSize")
	if !ok {
		return
	}

	order := q.Get("order")
	if order != "" && order != models.OrderAsc && order != models.OrderDesc {
		middleware.ErrorResponse(w, http.StatusBadRequest, "order must be ASC or DESC")
		return
	}

	result, err := h.polls.List(r.Context(), polls.ListParams{
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Page:     page,
		PageSize: pageSize,
		Order:    order,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// ClosePoll handles POST /polls/{id}/close
// Owner only. Closing an already closed poll returns it unchanged.
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.Close(r.Context(), middleware.UserID(r), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, poll)
}

// DeletePoll handles DELETE /polls/{id}
// Owner only, and only once the poll is closed. Votes go with it.
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if err := h.polls.Delete(r.Context(), middleware.UserID(r), r.PathValue("id")); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads an optional integer query parameter. Absent means 0; a
// malformed value writes a 400 and returns false.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}
