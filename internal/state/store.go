package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atrium-ui/app-state/internal/notify"
	"github.com/atrium-ui/app-state/internal/tree"
)

// DefaultScope is the root scope used when none is given.
const DefaultScope = "global"

// ErrClosed is returned by writes on a closed Store.
var ErrClosed = errors.New("state: store closed")

// Persister receives the whole state after every committed write.
//
// Persist is called with the store lock held and must return promptly; any
// real I/O belongs on another goroutine. The snapshot is a private deep copy
// the persister may keep. Persistence failures never fail the write.
type Persister interface {
	Persist(revision int64, snapshot map[string]tree.Map)
}

// Store owns the canonical tree of every scope.
//
// Canonical trees are immutable once published: writes build new trees and
// swap the scope table atomically. Nothing outside the Store ever receives a
// canonical tree; reads, snapshots and deltas are copies.
type Store struct {
	mu       sync.Mutex // Serializes commit + persistence hand-off + fan-out
	scopes   atomic.Pointer[map[string]tree.Map]
	revision atomic.Int64
	closed   atomic.Bool
	fanout   atomic.Bool // Set while subscribers are being called

	pendingMu sync.Mutex
	pending   []mutation // Reentrant writes queued during a fan-out

	notifier  *notify.Notifier
	persister Persister
	metrics   *Metrics
	logger    *slog.Logger

	notifyOpts []notify.Option
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets the persistence hook. Default: none.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLogger sets the logger for the store and its notifier.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
		s.notifyOpts = append(s.notifyOpts, notify.WithLogger(l))
	}
}

// WithRegisterer registers store and notifier metrics with reg.
// Default: unregistered collectors.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = NewMetrics(reg)
		s.notifyOpts = append(s.notifyOpts, notify.WithMetrics(notify.NewMetrics(reg)))
	}
}

// WithIDGenerator sets the subscription ID generator.
// Default: notify.UUIDv7Generator.
func WithIDGenerator(g notify.IDGenerator) Option {
	return func(s *Store) {
		s.notifyOpts = append(s.notifyOpts, notify.WithIDGenerator(g))
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.notifier = notify.New(s.notifyOpts...)

	empty := make(map[string]tree.Map)
	s.scopes.Store(&empty)
	return s
}

// Close cancels every subscription and rejects further writes.
// Reads keep working. Closing twice is a no-op.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.notifier.Close()
}

// Get returns a copy of the scope's tree, or an empty tree if the scope
// does not exist.
func (s *Store) Get(scope string) tree.Map {
	t, ok := (*s.scopes.Load())[scope]
	if !ok {
		return tree.Map{}
	}
	return tree.Copy(t)
}

// Scopes returns the names of all existing scopes, sorted.
func (s *Store) Scopes() []string {
	return slices.Sorted(maps.Keys(*s.scopes.Load()))
}

// Snapshot returns a copy of every scope.
func (s *Store) Snapshot() map[string]tree.Map {
	return copyScopes(*s.scopes.Load())
}

// Revision returns the number of committed writes, starting from the
// revision given to Restore.
func (s *Store) Revision() int64 {
	return s.revision.Load()
}

// Set merges partial into the scope's tree (see tree.Merge) and notifies the
// scope's subscribers. It notifies even when nothing changed; subscribers
// whose delta is empty are simply not called.
//
// The only errors are ErrClosed and a tree.MalformedValueError for a cyclic
// partial, both reported before anything is modified.
func (s *Store) Set(ctx context.Context, scope string, partial tree.Map) error {
	incoming, err := tree.CloneMap(partial)
	if err != nil {
		return fmt.Errorf("set %q: %w", scope, err)
	}
	return s.write(ctx, mutation{op: opSet, scope: scope, partial: incoming})
}

// DeleteKey removes key from the scope's tree if present, then notifies the
// scope's subscribers regardless.
func (s *Store) DeleteKey(ctx context.Context, scope, key string) error {
	return s.write(ctx, mutation{op: opDeleteKey, scope: scope, key: key})
}

// DeleteScope removes the whole scope, then notifies its subscribers, who
// receive a null marker for every key they had seen.
func (s *Store) DeleteScope(ctx context.Context, scope string) error {
	return s.write(ctx, mutation{op: opDeleteScope, scope: scope})
}

// Restore replaces every scope and sets the revision, without notifying
// anyone or invoking the Persister. Use it to load persisted state before
// subscribers attach.
func (s *Store) Restore(revision int64, snapshot map[string]tree.Map) error {
	next := make(map[string]tree.Map, len(snapshot))
	for scope, t := range snapshot {
		c, err := tree.CloneMap(t)
		if err != nil {
			return fmt.Errorf("restore scope %q: %w", scope, err)
		}
		next[scope] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes.Store(&next)
	s.revision.Store(revision)
	s.metrics.Scopes.Set(float64(len(next)))
	return nil
}

// Subscribe registers cb for changes to scope. The subscription starts from
// an empty snapshot, so the first delivery carries the whole scope.
func (s *Store) Subscribe(scope string, cb notify.Callback) *notify.Subscription {
	return s.notifier.Subscribe(scope, cb)
}

// SubscribeCurrent registers cb for changes to scope, starting from the
// scope's current tree: only later changes are delivered.
//
// From inside a callback, pass the callback's context.
func (s *Store) SubscribeCurrent(ctx context.Context, scope string, cb notify.Callback) *notify.Subscription {
	if !s.dispatching(ctx) {
		s.lock("subscribe", scope)
		defer s.mu.Unlock()
	}
	current := (*s.scopes.Load())[scope]
	return s.notifier.Subscribe(scope, cb, notify.WithSnapshot(current))
}

// Subscribers returns the number of active subscriptions for scope.
func (s *Store) Subscribers(scope string) int {
	return s.notifier.Count(scope)
}

type dispatchKey struct{}

// dispatching reports whether ctx was handed out by this store's fan-out.
func (s *Store) dispatching(ctx context.Context) bool {
	owner, _ := ctx.Value(dispatchKey{}).(*Store)
	return owner == s
}

func (s *Store) write(ctx context.Context, m mutation) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if s.dispatching(ctx) {
		s.pendingMu.Lock()
		s.pending = append(s.pending, m)
		s.pendingMu.Unlock()
		return nil
	}

	s.lock(m.op.String(), m.scope)
	defer s.mu.Unlock()
	s.fanout.Store(true)
	defer s.fanout.Store(false)

	dctx := context.WithValue(ctx, dispatchKey{}, s)
	s.commit(dctx, m)
	for {
		next, ok := s.popPending()
		if !ok {
			return nil
		}
		s.commit(dctx, next)
	}
}

// lock acquires s.mu. Waiting on a fan-out is logged: a callback that calls
// back in without its own context waits on itself forever.
func (s *Store) lock(op, scope string) {
	if s.mu.TryLock() {
		return
	}
	if s.fanout.Load() {
		s.logger.Warn("waiting for subscriber fan-out; writes from a callback must pass the callback's context",
			"op", op,
			"scope", scope,
		)
	}
	s.mu.Lock()
}

func (s *Store) popPending() (mutation, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pending) == 0 {
		return mutation{}, false
	}
	m := s.pending[0]
	s.pending[0] = mutation{}
	s.pending = s.pending[1:]
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return m, true
}

// commit applies one mutation and fans it out. Caller holds s.mu.
func (s *Store) commit(ctx context.Context, m mutation) {
	next := m.apply(*s.scopes.Load())
	s.scopes.Store(&next)
	rev := s.revision.Add(1)

	s.metrics.Writes.WithLabelValues(m.op.String()).Inc()
	s.metrics.Scopes.Set(float64(len(next)))
	s.logger.Debug("committed",
		"op", m.op.String(),
		"scope", m.scope,
		"revision", rev,
	)

	if s.persister != nil {
		s.persister.Persist(rev, copyScopes(next))
	}

	current, ok := next[m.scope]
	if !ok {
		current = tree.Map{}
	}
	s.notifier.Notify(ctx, m.scope, current)
}

func copyScopes(scopes map[string]tree.Map) map[string]tree.Map {
	out := make(map[string]tree.Map, len(scopes))
	for scope, t := range scopes {
		out[scope] = tree.Copy(t)
	}
	return out
}
