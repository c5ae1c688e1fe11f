package notify

import (
	"sync"
	"sync/atomic"

	"github.com/atrium-ui/app-state/internal/tree"
)

// Subscription is the handle returned by Subscribe.
//
// States: active until Remove is called, then cancelled for good.
// Re-subscribing requires a new Subscription.
type Subscription struct {
	id       string
	scope    string
	callback Callback
	notifier *Notifier

	mu        sync.Mutex
	snapshot  tree.Map // Private deep copy; never aliased
	cancelled atomic.Bool
}

// ID returns the subscription ID.
func (s *Subscription) ID() string { return s.id }

// Scope returns the subscribed scope.
func (s *Subscription) Scope() string { return s.scope }

// Active reports whether Remove has not been called yet.
func (s *Subscription) Active() bool { return !s.cancelled.Load() }

// Remove unregisters the subscription. It is safe to call from inside any
// callback, including this subscription's own; a pass already in flight skips
// the subscription from then on. Calling Remove more than once is a no-op.
func (s *Subscription) Remove() {
	if s.cancelled.Swap(true) {
		return
	}
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()

	s.notifier.remove(s)
	s.notifier.metrics.Subscriptions.Dec()
	s.notifier.logger.Debug("unsubscribed", "scope", s.scope, "subscription", s.id)
}

// Snapshot returns a copy of the tree as last observed by this subscription.
func (s *Subscription) Snapshot() tree.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Copy(s.snapshot)
}

// observe diffs current against the snapshot and adopts a copy of current.
func (s *Subscription) observe(current tree.Map) tree.Map {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := tree.MustSubtract(s.snapshot, current)
	s.snapshot = tree.Copy(current)
	return delta
}
