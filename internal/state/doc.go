// Package state implements the scope store: the canonical state trees, one
// per named scope, and the write path that keeps subscribers informed.
//
// A Store is an explicit instance; there is no process-wide singleton. Every
// write (Set, DeleteKey, DeleteScope) runs to completion before returning:
//
//  1. The mutation is applied copy-on-write to the scope table
//  2. The revision clock advances
//  3. A copy of the whole state is offered to the Persister (fire-and-forget)
//  4. Every subscriber of the scope receives its delta, in registration order
//
// Steps 1-4 form one critical section guarded by a single mutex per Store.
//
// # Reentrancy
//
// Callbacks run on the writer's goroutine while the lock is held. A callback
// may write back to the store through the context it was handed: such writes
// are queued and committed, each with its own fan-out, after the current pass
// and before the outermost write returns. Writing through any other context
// from inside a callback deadlocks.
//
// Reads (Get, Snapshot, Scopes) never take the write lock, so callbacks may
// read freely. They observe fully committed trees only.
package state
