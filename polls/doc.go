// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package polls is the poll side of the service: create, get, list,
// results, voter listings, close and delete. Reads present the effective
// status (a poll past endsAt reads as CLOSED before the close is stored).
package polls
