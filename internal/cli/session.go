package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atrium-ui/app-state/internal/state"
	"github.com/atrium-ui/app-state/internal/store"
	"github.com/atrium-ui/app-state/internal/tree"
)

// session is a state.Store restored from the database, persisting every
// write back through a store.Writer.
type session struct {
	db     *store.Store
	writer *store.Writer
	state  *state.Store
}

// openSession opens the database and restores the last persisted snapshot.
func openSession(ctx context.Context, path string) (*session, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	rev, snapshot, err := db.LoadSnapshot(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger := slog.Default()
	writer := store.NewWriter(db, store.WithWriterLogger(logger))
	st := state.New(state.WithPersister(writer), state.WithLogger(logger))
	if err := st.Restore(rev, snapshot); err != nil {
		writer.Close()
		db.Close()
		return nil, err
	}

	slog.Debug("session opened", "db", path, "revision", rev, "scopes", len(snapshot))
	return &session{db: db, writer: writer, state: st}, nil
}

// Close persists any pending snapshot and closes the database.
// It reports a failed final save.
func (s *session) Close(ctx context.Context) error {
	s.state.Close()
	flushErr := s.writer.Flush(ctx)
	s.writer.Close()
	if err := s.db.Close(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("close database: %w", err))
	}
	if flushErr != nil {
		return fmt.Errorf("persist state: %w", flushErr)
	}
	return nil
}

// WriteResult describes one write and the delta it produced.
type WriteResult struct {
	Scope    string   `json:"scope"`
	Revision int64    `json:"revision"`
	Delta    tree.Map `json:"delta"`
}

// String renders the result for text output.
func (r WriteResult) String() string {
	if len(r.Delta) == 0 {
		return fmt.Sprintf("No change to %q (revision %d).", r.Scope, r.Revision)
	}
	text, err := indentJSON(r.Delta)
	if err != nil {
		return err.Error()
	}
	return text
}

// write runs op against a current-state subscriber of scope and returns the
// delta it saw.
func (s *session) write(ctx context.Context, scope string, op func(context.Context) error) (WriteResult, error) {
	delta := tree.Map{}
	sub := s.state.SubscribeCurrent(ctx, scope, func(_ context.Context, d tree.Map) {
		delta = tree.Copy(d)
	})
	defer sub.Remove()

	if err := op(ctx); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Scope: scope, Revision: s.state.Revision(), Delta: delta}, nil
}
