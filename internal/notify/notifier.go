package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/atrium-ui/app-state/internal/tree"
)

// Callback receives a non-empty delta for a scope. The context is the one
// passed to Notify; state.Store marks it so writes made through it from inside
// the callback are recognised as reentrant.
type Callback func(ctx context.Context, delta tree.Map)

// Notifier is a per-scope subscription registry.
//
// Thread-safety model:
//   - Subscribe, Remove, Count: safe from any goroutine
//   - Notify: callers serialize; see package doc
type Notifier struct {
	mu      sync.Mutex
	subs    map[string][]*Subscription // Registration order per scope
	ids     IDGenerator
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithIDGenerator sets the subscription ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(n *Notifier) {
		n.ids = g
	}
}

// WithMetrics sets the metrics sink. Default: unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = l
	}
}

// New creates an empty Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		subs: make(map[string][]*Subscription),
		ids:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.metrics == nil {
		n.metrics = NewMetrics(nil)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*Subscription)

// WithSnapshot seeds the subscription's last-observed tree, so the first
// delivery only carries changes relative to it. The map is deep-copied.
// Without it the snapshot starts empty and the first delivery carries the
// whole scope.
func WithSnapshot(m tree.Map) SubscribeOption {
	return func(s *Subscription) {
		s.snapshot = tree.Copy(m)
	}
}

// Subscribe registers cb for scope and returns its handle.
func (n *Notifier) Subscribe(scope string, cb Callback, opts ...SubscribeOption) *Subscription {
	sub := &Subscription{
		id:       n.ids.Generate(),
		scope:    scope,
		callback: cb,
		notifier: n,
		snapshot: tree.Map{},
	}
	for _, opt := range opts {
		opt(sub)
	}

	n.mu.Lock()
	n.subs[scope] = append(n.subs[scope], sub)
	n.mu.Unlock()

	n.metrics.Subscriptions.Inc()
	n.logger.Debug("subscribed", "scope", scope, "subscription", sub.id)
	return sub
}

// Count returns the number of active subscriptions for scope.
func (n *Notifier) Count(scope string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[scope])
}

// Scopes returns the scopes that have at least one subscription, sorted.
func (n *Notifier) Scopes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	scopes := make([]string, 0, len(n.subs))
	for scope := range n.subs {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

// Notify delivers the changes in current to every active subscription of
// scope, in registration order. current must be acyclic and is not retained.
//
// For each subscription: delta = Subtract(snapshot, current); the snapshot is
// replaced with a copy of current whether or not the delta is empty; the
// callback runs only for a non-empty delta.
func (n *Notifier) Notify(ctx context.Context, scope string, current tree.Map) {
	n.mu.Lock()
	subs := slices.Clone(n.subs[scope])
	n.mu.Unlock()

	n.metrics.Notifications.Inc()
	for _, sub := range subs {
		// Remove() may have run in an earlier callback of this pass.
		if !sub.Active() {
			continue
		}
		delta := sub.observe(current)
		if len(delta) == 0 {
			n.metrics.Suppressed.Inc()
			continue
		}
		n.deliver(ctx, sub, delta)
	}
}

// deliver invokes the callback, isolating panics so later subscribers are
// still served.
func (n *Notifier) deliver(ctx context.Context, sub *Subscription, delta tree.Map) {
	defer func() {
		if r := recover(); r != nil {
			n.metrics.Panics.Inc()
			n.logger.Error("subscriber callback panicked",
				"scope", sub.scope,
				"subscription", sub.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	n.metrics.Deliveries.Inc()
	n.logger.Debug("delivering delta", "scope", sub.scope, "subscription", sub.id, "keys", len(delta))
	sub.callback(ctx, delta)
}

// Close cancels every subscription.
func (n *Notifier) Close() {
	n.mu.Lock()
	var all []*Subscription
	for _, subs := range n.subs {
		all = append(all, subs...)
	}
	n.mu.Unlock()

	for _, sub := range all {
		sub.Remove()
	}
}

func (n *Notifier) remove(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subs[sub.scope]
	i := slices.Index(subs, sub)
	if i < 0 {
		return
	}
	subs = slices.Delete(subs, i, i+1)
	if len(subs) == 0 {
		delete(n.subs, sub.scope)
	} else {
		n.subs[sub.scope] = subs
	}
}
