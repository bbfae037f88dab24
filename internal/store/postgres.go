// Package store provides user-profile storage backends for James.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) UpsertUser(fbid, firstName string) (bool, error) {
	if err := validateUpsert(fbid); err != nil {
		return false, err
	}

	now := time.Now()
	var inserted bool
	// xmax = 0 only for freshly inserted rows, which distinguishes the
	// insert path from the conflict-update path in one round trip.
	err := s.db.QueryRow(`
		INSERT INTO users (fbid, first_name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (fbid) DO UPDATE SET
			first_name = CASE WHEN EXCLUDED.first_name <> '' THEN EXCLUDED.first_name ELSE users.first_name END,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)`, fbid, firstName, now).Scan(&inserted)
	if err != nil {
		slog.Error("PostgresStore UpsertUser failed", "error", err, "fbid", fbid)
		return false, fmt.Errorf("failed to upsert user %s: %w", fbid, err)
	}
	slog.Debug("PostgresStore UpsertUser succeeded", "fbid", fbid, "was_new", inserted)
	return inserted, nil
}

func (s *PostgresStore) ListUsers() ([]UserProfile, error) {
	rows, err := s.db.Query(`SELECT fbid, first_name, created_at, updated_at FROM users`)
	if err != nil {
		slog.Error("PostgresStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []UserProfile
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.FBID, &u.FirstName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			slog.Error("PostgresStore ListUsers scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListUsers rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	slog.Debug("PostgresStore ListUsers succeeded", "count", len(users))
	return users, nil
}

func (s *PostgresStore) RecordSavedResult(fbid, name, category string) error {
	if err := validateUpsert(fbid); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO saved_results (fbid, name, category, saved_at) VALUES ($1, $2, $3, $4)`,
		fbid, name, category, time.Now())
	if err != nil {
		slog.Error("PostgresStore RecordSavedResult failed", "error", err, "fbid", fbid)
		return fmt.Errorf("failed to insert saved result for %s: %w", fbid, err)
	}
	slog.Debug("PostgresStore RecordSavedResult succeeded", "fbid", fbid, "name", name)
	return nil
}

func (s *PostgresStore) ListSavedResults(fbid string) ([]SavedResult, error) {
	rows, err := s.db.Query(`SELECT id, fbid, name, category, saved_at FROM saved_results WHERE fbid = $1 ORDER BY id`, fbid)
	if err != nil {
		slog.Error("PostgresStore ListSavedResults query failed", "error", err, "fbid", fbid)
		return nil, fmt.Errorf("failed to query saved results: %w", err)
	}
	defer rows.Close()

	var results []SavedResult
	for rows.Next() {
		var r SavedResult
		if err := rows.Scan(&r.ID, &r.FBID, &r.Name, &r.Category, &r.SavedAt); err != nil {
			slog.Error("PostgresStore ListSavedResults scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan saved result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved result rows: %w", err)
	}
	return results, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
