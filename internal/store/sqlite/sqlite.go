// Package sqlite stores question records in a local SQLite file, for
// offline imports and tests. The write key is not used.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/store"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, opts store.Options) (core.Store, error) {
		return Open(ctx, opts.URL, opts.Collection)
	})
}

// Store upserts records into one SQLite table.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens (or creates) the database at path and the table inside it.
// path may carry a sqlite:// or file: prefix; ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if err := store.ValidIdentifier(table); err != nil {
		return nil, err
	}

	path = strings.TrimPrefix(path, "sqlite://")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite serializes writers and :memory: is per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, table: table}
	if _, err := db.ExecContext(ctx, s.createSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return s, nil
}

// Upsert writes recs in one transaction.
func (s *Store) Upsert(ctx context.Context, recs []core.OutputRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Category, r.Topic, r.BodyPrimary, r.BodySecondary,
			r.Notes, r.Tags, r.StatusFlag, r.Active,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of rows in the table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Reset deletes every row.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"`, s.table)); err != nil {
		return fmt.Errorf("delete from %s: %w", s.table, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
	id             TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	topic          TEXT NOT NULL,
	body_primary   TEXT NOT NULL DEFAULT '',
	body_secondary TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '',
	status_flag    TEXT NOT NULL,
	active         INTEGER NOT NULL DEFAULT 1
)`, s.table)
}

func (s *Store) upsertSQL() string {
	updates := make([]string, 0, len(core.OutputColumns)-1)
	for _, c := range core.OutputColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s`,
		s.table,
		strings.Join(core.OutputColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(core.OutputColumns)), ", "),
		strings.Join(updates, ", "),
	)
}
