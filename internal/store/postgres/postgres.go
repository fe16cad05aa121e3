// Package postgres stores question records in a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/logging"
	"github.com/JonMunkholm/qbank/internal/store"
)

func init() {
	store.Register("postgres", func(ctx context.Context, opts store.Options) (core.Store, error) {
		return Open(ctx, opts)
	})
}

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store upserts records into one table through a connection pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
	q     queries
}

// Open connects, pings and makes sure the target table exists.
// A non-empty WriteKey replaces the password of the connection URL.
func Open(ctx context.Context, opts store.Options) (*Store, error) {
	if err := store.ValidIdentifier(opts.Collection); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.WriteKey != "" {
		poolConfig.ConnConfig.Password = opts.WriteKey
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	poolConfig.MinConns = int32(opts.MinConns)
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool, table: opts.Collection, q: newQueries(opts.Collection)}
	if err := s.ensureTable(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logging.FromContext(ctx).Info("connected to database",
		"name", databaseName(opts.URL),
		"table", opts.Collection,
	)
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, s.q.create); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Upsert writes recs in one transaction; either all rows land or none.
func (s *Store) Upsert(ctx context.Context, recs []core.OutputRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	batch := &pgx.Batch{}
	for _, r := range recs {
		batch.Queue(s.q.upsert,
			r.ID, r.Category, r.Topic, r.BodyPrimary, r.BodySecondary,
			r.Notes, r.Tags, r.StatusFlag, r.Active,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, r := range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of rows in the table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return count(ctx, s.pool, s.q.count)
}

func count(ctx context.Context, db DBTX, sql string) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Reset truncates the table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.q.truncate); err != nil {
		return fmt.Errorf("truncate %s: %w", s.table, err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// queries holds the SQL for one table name.
type queries struct {
	create   string
	upsert   string
	count    string
	truncate string
}

func newQueries(table string) queries {
	ident := pgx.Identifier{table}.Sanitize()
	cols := strings.Join(core.OutputColumns, ", ")

	placeholders := make([]string, len(core.OutputColumns))
	updates := make([]string, 0, len(core.OutputColumns)-1)
	for i, c := range core.OutputColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	return queries{
		create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id             TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	topic          TEXT NOT NULL,
	body_primary   TEXT NOT NULL DEFAULT '',
	body_secondary TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '',
	status_flag    TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE
)`, ident),
		upsert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
			ident, cols, strings.Join(placeholders, ", "), strings.Join(updates, ", ")),
		count:    fmt.Sprintf("SELECT COUNT(*) FROM %s", ident),
		truncate: fmt.Sprintf("TRUNCATE TABLE %s", ident),
	}
}

// databaseName extracts the database name from a URL for logging.
func databaseName(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return strings.TrimPrefix(u.Path, "/")
	}
	return ""
}
