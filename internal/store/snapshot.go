package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atrium-ui/app-state/internal/tree"
)

const metaRevision = "revision"

// SaveSnapshot replaces the stored scopes with snapshot, tagged with revision.
//
// Returns saved=false without touching the database when revision is not newer
// than the stored one. The replacement is atomic: readers see either the old
// snapshot or the new one.
func (s *Store) SaveSnapshot(ctx context.Context, revision int64, snapshot map[string]tree.Map) (saved bool, err error) {
	rows := make(map[string]string, len(snapshot))
	for name, t := range snapshot {
		data, err := marshalTree(t)
		if err != nil {
			return false, fmt.Errorf("save snapshot: scope %q: %w", name, err)
		}
		rows[name] = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer func() {
		if !saved {
			tx.Rollback()
		}
	}()

	stored, err := readRevision(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	if revision <= stored {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scopes`); err != nil {
		return false, fmt.Errorf("save snapshot: clear scopes: %w", err)
	}
	for name, data := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scopes (name, tree, revision) VALUES (?, ?, ?)
		`, name, data, revision); err != nil {
			return false, fmt.Errorf("save snapshot: scope %q: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaRevision, revision); err != nil {
		return false, fmt.Errorf("save snapshot: revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return true, nil
}

// LoadSnapshot returns the stored revision and every stored scope.
// An empty database yields revision 0 and an empty map.
func (s *Store) LoadSnapshot(ctx context.Context) (int64, map[string]tree.Map, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return 0, nil, fmt.Errorf("load snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	revision, err := readRevision(ctx, tx)
	if err != nil {
		return 0, nil, fmt.Errorf("load snapshot: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT name, tree FROM scopes
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return 0, nil, fmt.Errorf("load snapshot: query scopes: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]tree.Map)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return 0, nil, fmt.Errorf("load snapshot: scan: %w", err)
		}
		t, err := unmarshalTree(data)
		if err != nil {
			return 0, nil, fmt.Errorf("load snapshot: scope %q: %w", name, err)
		}
		snapshot[name] = t
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("load snapshot: iterate: %w", err)
	}

	return revision, snapshot, nil
}

// LoadScope returns the stored tree for one scope.
// Returns (nil, false, nil) if the scope is not stored.
func (s *Store) LoadScope(ctx context.Context, name string) (tree.Map, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT tree FROM scopes WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load scope %q: %w", name, err)
	}

	t, err := unmarshalTree(data)
	if err != nil {
		return nil, false, fmt.Errorf("load scope %q: %w", name, err)
	}
	return t, true, nil
}

// Revision returns the stored revision, or 0 for an empty database.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	return readRevision(ctx, s.db)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readRevision(ctx context.Context, q queryRower) (int64, error) {
	var revision int64
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaRevision).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return revision, nil
}
