package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver

	applog "fintrack/internal/log"
)

// PostgresStore keeps values in the kv table of a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects with a lib/pq DSN, e.g.
// "host=localhost port=5432 user=postgres password=postgres dbname=fintrack sslmode=disable".
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Postgres store ready",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldOperation, applog.OpStartup)
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

const postgresUpsert = `
	INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, postgresUpsert, key, string(value)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Update serializes on a transaction-scoped advisory lock for key. A row
// lock alone would not cover the first write of an absent key.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s: begin: %w", key, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("update %s: lock: %w", key, err)
	}

	var (
		value string
		ok    = true
	)
	switch err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value); {
	case errors.Is(err, sql.ErrNoRows):
		ok = false
	case err != nil:
		return fmt.Errorf("update %s: read: %w", key, err)
	}

	var current []byte
	if ok {
		current = []byte(value)
	}
	next, err := fn(current, ok)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, postgresUpsert, key, string(next)); err != nil {
		return fmt.Errorf("update %s: write: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s: commit: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
