// Package notify implements per-scope change notification.
//
// Each Subscription keeps a private snapshot of the scope as it last observed
// it. On Notify, the Notifier diffs every active subscription's snapshot
// against the current tree, replaces the snapshot, and invokes the callback
// with the delta only when something changed.
//
// Delivery rules:
//   - Subscriptions of a scope are visited in registration order (FIFO)
//   - A callback never receives an empty delta
//   - Remove() takes effect immediately, even mid-pass
//   - A panicking callback is recovered and logged; later subscribers still
//     receive their deltas
//
// Notify is synchronous and runs callbacks on the caller's goroutine. Callers
// must serialize Notify calls for the same Notifier; state.Store does this
// with its write lock.
package notify
