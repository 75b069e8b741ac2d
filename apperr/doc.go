// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package apperr is the error taxonomy shared by the vote engine, the poll
service and the HTTP layer.

	err := apperr.Conflict("You have already voted in this poll")
	apperr.KindOf(err)              // KindConflict
	apperr.HTTPStatus(KindConflict) // 409

Kinds:

  - KindInvalidInput: rejected before any storage write (400)
  - KindUnauthenticated: no verified identity (401)
  - KindForbidden: identity lacks permission (403)
  - KindNotFound: poll or vote absent (404)
  - KindConflict: state conflict such as closed poll or duplicate vote (409)
  - KindTransient: retryable storage failure (503)
  - KindInternal: anything else, reported with a generic message (500)

Wrap keeps the storage cause reachable through errors.Is / errors.As for
logging while Message stays client-safe.
*/
package apperr
