// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth verifies the JWTs that identify voters and poll owners.

# Tokens

Tokens are HS256 JWTs signed with the shared JWT_SECRET. The subject claim
is the user id; an optional email claim is carried along:

	id, err := auth.ParseToken(secret, token)
	// id.UserID, id.Email

Registration and login live with the identity provider that mints the
tokens. SignToken exists for tests and local tooling:

	token, err := auth.SignToken(secret, auth.Identity{UserID: "u1"}, time.Hour, time.Now())

# Transport

TokenFromRequest reads, in order:

  - Authorization: Bearer <token>
  - the voting_token cookie

A present but malformed Authorization header is an error; it does not fall
through to the cookie.

# Request Context

Middleware stores the verified identity on the request context:

	ctx = auth.WithIdentity(ctx, id)
	id, ok := auth.FromContext(ctx)

# Errors

ErrMissingToken means no credentials were sent. ErrInvalidToken covers bad
signatures, unexpected algorithms, expiry and missing subjects; test with
errors.Is.
*/
package auth
