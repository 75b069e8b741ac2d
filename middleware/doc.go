// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Wrap handlers with request logging and latency metrics:

	mux.HandleFunc("GET /health", middleware.WithLogging(middleware.WithMetrics(m)(handler)))

Logs request start (method, path, remote) and completion (status,
duration_ms). WithMetrics labels latency with the matched route pattern.

# Authentication

RequireUser verifies the caller's JWT from the Authorization header or the
voting_token cookie and stores the identity in the request context:

	mux.HandleFunc("POST /polls/{id}/votes", middleware.RequireUser(secret, cfg.CookieSecure)(h.CastVote))

	voter := middleware.UserID(r)

When cookieSecure is set the cookie is ignored unless the request arrived
over TLS or with X-Forwarded-Proto: https.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")

Write a classified error; the status and error code come from its apperr kind:

	if _, err := engine.Cast(ctx, pollID, voter, req.OptionIDs); err != nil {
		middleware.WriteError(w, err)
		return
	}

Parse JSON request bodies (capped at 1 MiB):

	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
