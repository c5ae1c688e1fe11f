package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atrium-ui/app-state/internal/tree"
)

// DefaultSaveTimeout bounds a single background save.
const DefaultSaveTimeout = 5 * time.Second

// WriterMetrics counts background save activity.
type WriterMetrics struct {
	Saves     prometheus.Counter
	Failures  prometheus.Counter
	Coalesced prometheus.Counter
}

// NewWriterMetrics creates writer metrics registered with reg.
// A nil reg creates unregistered collectors.
func NewWriterMetrics(reg prometheus.Registerer) *WriterMetrics {
	f := promauto.With(reg)
	return &WriterMetrics{
		Saves: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_snapshot_saves_total",
			Help: "Snapshots written to the database",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_snapshot_failures_total",
			Help: "Snapshot saves that returned an error",
		}),
		Coalesced: f.NewCounter(prometheus.CounterOpts{
			Name: "appstate_snapshots_coalesced_total",
			Help: "Snapshots replaced by a newer one before being saved",
		}),
	}
}

type pendingSnapshot struct {
	revision int64
	scopes   map[string]tree.Map
}

// Writer saves snapshots on a background goroutine. It implements
// state.Persister.
//
// Persist never blocks on I/O: it records the snapshot and wakes the worker.
// When several snapshots arrive while a save is running, only the newest is
// saved. Save errors are logged and counted; the next snapshot retries with
// the full state, so nothing is lost beyond the failed revision.
//
// Thread-safety: all methods are safe for concurrent use.
type Writer struct {
	store   *Store
	logger  *slog.Logger
	metrics *WriterMetrics
	timeout time.Duration

	mu      sync.Mutex
	pending *pendingSnapshot
	closed  bool

	signal  chan struct{}   // Buffered, size 1
	flushes chan chan error // Flush requests
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger. Default: slog.Default().
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithWriterRegisterer registers writer metrics with reg.
// Default: unregistered collectors.
func WithWriterRegisterer(reg prometheus.Registerer) WriterOption {
	return func(w *Writer) {
		w.metrics = NewWriterMetrics(reg)
	}
}

// WithSaveTimeout bounds each save. Default: DefaultSaveTimeout.
func WithSaveTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewWriter creates a Writer for s and starts its worker goroutine.
// Call Close to stop it.
func NewWriter(s *Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   s,
		timeout: DefaultSaveTimeout,
		signal:  make(chan struct{}, 1),
		flushes: make(chan chan error),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.metrics == nil {
		w.metrics = NewWriterMetrics(nil)
	}

	go w.run()
	return w
}

// Persist queues snapshot for saving. Implements state.Persister.
// Snapshots offered after Close, or older than the one already queued,
// are dropped.
func (w *Writer) Persist(revision int64, snapshot map[string]tree.Map) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.logger.Warn("snapshot dropped: writer closed", "revision", revision)
		return
	}
	if w.pending != nil {
		if revision <= w.pending.revision {
			return
		}
		w.metrics.Coalesced.Inc()
	}
	w.pending = &pendingSnapshot{revision: revision, scopes: snapshot}

	// Non-blocking: a buffer of 1 coalesces wake-ups
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Flush saves the queued snapshot, if any, and returns the save error.
// It returns ctx.Err() if ctx ends first and ErrWriterClosed after Close.
func (w *Writer) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case w.flushes <- reply:
	case <-w.done:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close saves the queued snapshot, stops the worker and waits for it.
// Closing twice is a no-op.
func (w *Writer) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	for {
		select {
		case <-w.signal:
			w.savePending()
		case reply := <-w.flushes:
			reply <- w.savePending()
		case <-w.stop:
			w.savePending()
			return
		}
	}
}

// savePending saves and clears the queued snapshot.
// CRITICAL: Called only from the worker goroutine.
func (w *Writer) savePending() error {
	w.mu.Lock()
	p := w.pending
	w.pending = nil
	w.mu.Unlock()

	if p == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	saved, err := w.store.SaveSnapshot(ctx, p.revision, p.scopes)
	if err != nil {
		w.metrics.Failures.Inc()
		w.logger.Error("snapshot save failed",
			"error", err,
			"revision", p.revision,
			"scopes", len(p.scopes),
		)
		return err
	}
	if saved {
		w.metrics.Saves.Inc()
		w.logger.Debug("snapshot saved", "revision", p.revision, "scopes", len(p.scopes))
	} else {
		w.logger.Debug("snapshot skipped: stored revision is newer", "revision", p.revision)
	}
	return nil
}
