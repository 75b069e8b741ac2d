// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package memstore is an in-process store.Store.

	s := memstore.New(memstore.Options{Transactions: true})

With Transactions false, Begin returns store.ErrTxUnsupported and the vote
engine falls back to running its writes one by one, which is how a
single-node deployment behaves.

Every operation runs under one store-wide lock; a transaction keeps the lock
until Commit or Rollback, so it sees and writes a consistent snapshot.

InjectFault queues a one-shot error for an operation, which tests use to
drive the engine's failure paths:

	s.InjectFault(memstore.OpIncrementCounters, errors.New("disk full"))
*/
package memstore
