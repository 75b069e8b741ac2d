// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, description, options, startsAt, endsAt,
    allowMultiple, anonymousVoting
  - VoteRequest: optionIds (used by both cast and change)

# Response Types

Types for JSON responses:

  - PollResults: totalVotes plus per-option voteCount and percent
  - PollPage: one page of polls with paging metadata
  - VoterPage: one page of voter ids for an option
  - ErrorResponse: error, message

# Domain Types

  - Poll: poll metadata, time window, options and the aggregate counter
  - Option: one choice with its own voteCount
  - Vote: the single record of a voter's current selection for a poll

Vote.Version is bumped on every option replacement and is never exposed in
JSON; stores use it as a compare-and-swap token.

# Counters

For every poll the following holds at rest:

	poll.TotalVotes == poll.OptionVoteSum() == sum(len(v.OptionIDs)) over its votes

# Constants

Status values:

	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"

Sort orders:

	OrderAsc  = "ASC"
	OrderDesc = "DESC"
*/
package models
