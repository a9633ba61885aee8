// Package history persists the set of item ids emitted by earlier runs,
// so a story published once is never re-emitted.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is what the pipeline consumes: the full id set at run start and
// one commit of newly accepted ids at run end.
type Store interface {
	Load(ctx context.Context) (map[string]bool, error)
	Save(ctx context.Context, ids []string) error
}

// Options bound the history so it cannot grow forever. Entries beyond
// the retention window are pruned first, then the most recent MaxEntries
// are kept.
type Options struct {
	Retention  time.Duration
	MaxEntries int
}

func DefaultOptions() Options {
	return Options{
		Retention:  90 * 24 * time.Hour,
		MaxEntries: 10000,
	}
}

// SQLiteStore keeps the history in a single-file SQLite database next to
// the generated feed.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &SQLiteStore{db: db, opts: opts}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen_items`)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		ids[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return ids, nil
}

// Save commits newly emitted ids and prunes expired entries in one
// transaction, so a failed save leaves the previous history intact.
func (s *SQLiteStore) Save(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO seen_items (id, first_seen_at) VALUES (?, ?)
			ON CONFLICT (id) DO NOTHING
		`, id, now)
		if err != nil {
			return fmt.Errorf("failed to store history entry: %w", err)
		}
	}

	if s.opts.Retention > 0 {
		cutoff := now.Add(-s.opts.Retention)
		if _, err := tx.ExecContext(ctx, `DELETE FROM seen_items WHERE first_seen_at < ?`, cutoff); err != nil {
			return fmt.Errorf("failed to prune history by retention: %w", err)
		}
	}

	if s.opts.MaxEntries > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM seen_items WHERE id NOT IN (
				SELECT id FROM seen_items ORDER BY first_seen_at DESC, id LIMIT ?
			)
		`, s.opts.MaxEntries)
		if err != nil {
			return fmt.Errorf("failed to prune history by size: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
