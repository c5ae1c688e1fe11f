// Package store provides SQLite-backed durable storage for scope snapshots.
//
// The database holds the latest persisted revision of every scope:
//   - scopes: one row per scope, the tree stored as canonical JSON
//   - meta: the revision the rows belong to
//
// Snapshots only move forward. SaveSnapshot ignores a revision at or below
// the stored one, so an out-of-order or repeated save cannot roll state back.
//
// Writer adapts a Store to state.Persister: it accepts snapshots without
// blocking the store's write path and saves the latest one on a background
// goroutine, coalescing any that arrive while a save is running.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
