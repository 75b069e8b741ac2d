// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Vote API.

# Handler Types

Each handler is a thin struct over a domain service:

  - PollHandler: create, list, close and delete polls (polls.Service)
  - ResultsHandler: poll reads, results and voter listings (polls.Service)
  - VotingHandler: cast, change and read the caller's vote (vote.Engine)

	engine := vote.NewEngine(st, vote.WithMetrics(m))
	svc := polls.NewService(st)
	votingHandler := handlers.NewVotingHandler(engine)

Handlers do no storage work of their own. They decode the request, take the
caller from middleware.UserID, call the service, and hand any error to
middleware.WriteError, which maps its apperr kind to a status code.

# Polls

	POST   /polls                 → CreatePoll (auth)
	GET    /polls                 → ListPolls (?status, search, page, pageSize, order)
	GET    /polls/{id}            → GetPoll (effective status)
	GET    /polls/{id}/results    → GetResults (counts and percentages)
	POST   /polls/{id}/close      → ClosePoll (auth, owner)
	DELETE /polls/{id}            → DeletePoll (auth, owner, closed polls only)
	GET    /polls/{id}/options/{optionId}/voters → ListVoters (auth)

# Voting

	POST /polls/{id}/votes    → CastVote (201, 409 on a second vote)
	PUT  /polls/{id}/votes    → ChangeVote (409 when there is no vote yet)
	GET  /polls/{id}/votes/me → GetMyVote

A vote failing on a transient storage error answers 503 with
"Vote failed, please retry"; the client may resubmit.
*/
package handlers
