// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Vote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(st, cfg, metrics.New())

It builds a polls.Service and a vote.Engine over the store and hands them
to the handlers.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Polls:

	POST   /polls             - Create poll (auth)
	GET    /polls             - List polls
	GET    /polls/{id}        - Poll with effective status
	GET    /polls/{id}/results - Counts and percentages
	POST   /polls/{id}/close  - Close (auth, owner)
	DELETE /polls/{id}        - Delete a closed poll (auth, owner)
	GET    /polls/{id}/options/{optionId}/voters - Who picked an option (auth)

Votes (auth):

	POST /polls/{id}/votes    - Cast
	PUT  /polls/{id}/votes    - Change
	GET  /polls/{id}/votes/me - The caller's vote

# Middleware

Every API route is logged and timed. Routes marked auth additionally go
through middleware.RequireUser with cfg.JWTSecret and cfg.CookieSecure.
*/
package router
