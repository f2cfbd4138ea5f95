// Package storage is the persistence layer shared by the account, chat and
// game-server-link endpoints. It hides the SQL dialect behind value-returning
// methods; passwords and emails arrive already hashed. All lookups that find
// nothing return (nil, nil); absence is not an error.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupportedDBVersion must match the persisted database_version system
// variable; Open refuses to run against any other schema generation.
const SupportedDBVersion = 1

// Storage wraps a pgx connection pool.
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a Storage handle.
func New(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Storage{pool: pool}, nil
}

// Open verifies the schema generation and clears the online list. Called
// once at startup, after migrations.
func (s *Storage) Open(ctx context.Context) error {
	raw, err := s.GetWorldStateVar(ctx, "database_version", SystemMap)
	if err != nil {
		return fmt.Errorf("reading database version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("malformed database version %q: %w", raw, err)
	}
	if version != SupportedDBVersion {
		return fmt.Errorf("database version mismatch: have %d, support %d", version, SupportedDBVersion)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM mana_online_list`); err != nil {
		return fmt.Errorf("clearing online list: %w", err)
	}

	slog.Info("storage opened", "db_version", version)
	return nil
}

// Close closes the connection pool.
func (s *Storage) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for migrations and tests.
func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

// Begin opens a transaction for batched updates (player sync).
func (s *Storage) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}
