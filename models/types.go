// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Status is the stored or effective state of a poll.
type Status string

// Poll status constants
const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Valid reports whether s is a known poll status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Sort orders for poll listings
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// Request types

type CreatePollOptionRequest struct {
	Text string `json:"text"`
}

type CreatePollRequest struct {
	Title           string                    `json:"title"`
	Description     string                    `json:"description"`
	Options         []CreatePollOptionRequest `json:"options"`
	StartsAt        *time.Time                `json:"startsAt,omitempty"`
	EndsAt          *time.Time                `json:"endsAt,omitempty"`
	AllowMultiple   bool                      `json:"allowMultiple"`
	AnonymousVoting bool                      `json:"anonymousVoting"`
}

// VoteRequest is the body of both cast and change.
type VoteRequest struct {
	OptionIDs []string `json:"optionIds"`
}

// Response types

type PollResultOption struct {
	OptionID  string  `json:"optionId"`
	Text      string  `json:"text"`
	VoteCount int     `json:"voteCount"`
	Percent   float64 `json:"percent"`
}

type PollResults struct {
	PollID     string             `json:"pollId"`
	TotalVotes int                `json:"totalVotes"`
	Options    []PollResultOption `json:"options"`
}

type PollPage struct {
	Items           []Poll `json:"items"`
	Page            int    `json:"page"`
	PageSize        int    `json:"pageSize"`
	TotalCount      int    `json:"totalCount"`
	TotalPages      int    `json:"totalPages"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

type VoterPage struct {
	Items           []string `json:"items"`
	Page            int      `json:"page"`
	PageSize        int      `json:"pageSize"`
	TotalCount      int      `json:"totalCount"`
	TotalPages      int      `json:"totalPages"`
	HasNextPage     bool     `json:"hasNextPage"`
	HasPreviousPage bool     `json:"hasPreviousPage"`
}

// Domain types

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	VoteCount int    `json:"voteCount"`
}

type Poll struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	CreatedBy       string     `json:"createdBy"`
	Status          Status     `json:"status"`
	StartsAt        *time.Time `json:"startsAt,omitempty"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	AllowMultiple   bool       `json:"allowMultiple"`
	AnonymousVoting bool       `json:"anonymousVoting"`
	Options         []Option   `json:"options"`
	TotalVotes      int        `json:"totalVotes"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Option returns the option with the given id.
func (p Poll) Option(id string) (Option, bool) {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// OptionVoteSum is the sum of all option counters. It equals TotalVotes
// whenever the poll is consistent.
func (p Poll) OptionVoteSum() int {
	sum := 0
	for _, opt := range p.Options {
		sum += opt.VoteCount
	}
	return sum
}

type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"pollId"`
	VoterID   string    `json:"userId"`
	OptionIDs []string  `json:"optionIds"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
