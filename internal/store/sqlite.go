// Package store provides user-profile storage backends for James.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN
// is a file path to the database file; its directory is created if needed.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UpsertUser(fbid, firstName string) (bool, error) {
	if err := validateUpsert(fbid); err != nil {
		return false, err
	}

	var exists int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE fbid = ?`, fbid).Scan(&exists)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser lookup failed", "error", err, "fbid", fbid)
		return false, fmt.Errorf("failed to look up user %s: %w", fbid, err)
	}

	now := time.Now()
	if exists > 0 {
		if firstName != "" {
			_, err = s.db.Exec(`UPDATE users SET first_name = ?, updated_at = ? WHERE fbid = ?`, firstName, now, fbid)
		} else {
			_, err = s.db.Exec(`UPDATE users SET updated_at = ? WHERE fbid = ?`, now, fbid)
		}
		if err != nil {
			slog.Error("SQLiteStore UpsertUser update failed", "error", err, "fbid", fbid)
			return false, fmt.Errorf("failed to update user %s: %w", fbid, err)
		}
		slog.Debug("SQLiteStore UpsertUser refreshed", "fbid", fbid)
		return false, nil
	}

	_, err = s.db.Exec(`INSERT INTO users (fbid, first_name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		fbid, firstName, now, now)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser insert failed", "error", err, "fbid", fbid)
		return false, fmt.Errorf("failed to insert user %s: %w", fbid, err)
	}
	slog.Debug("SQLiteStore UpsertUser created", "fbid", fbid)
	return true, nil
}

func (s *SQLiteStore) ListUsers() ([]UserProfile, error) {
	rows, err := s.db.Query(`SELECT fbid, first_name, created_at, updated_at FROM users`)
	if err != nil {
		slog.Error("SQLiteStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []UserProfile
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.FBID, &u.FirstName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			slog.Error("SQLiteStore ListUsers scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListUsers rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	slog.Debug("SQLiteStore ListUsers succeeded", "count", len(users))
	return users, nil
}

func (s *SQLiteStore) RecordSavedResult(fbid, name, category string) error {
	if err := validateUpsert(fbid); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO saved_results (fbid, name, category, saved_at) VALUES (?, ?, ?, ?)`,
		fbid, name, category, time.Now())
	if err != nil {
		slog.Error("SQLiteStore RecordSavedResult failed", "error", err, "fbid", fbid)
		return fmt.Errorf("failed to insert saved result for %s: %w", fbid, err)
	}
	slog.Debug("SQLiteStore RecordSavedResult succeeded", "fbid", fbid, "name", name)
	return nil
}

func (s *SQLiteStore) ListSavedResults(fbid string) ([]SavedResult, error) {
	rows, err := s.db.Query(`SELECT id, fbid, name, category, saved_at FROM saved_results WHERE fbid = ? ORDER BY id`, fbid)
	if err != nil {
		slog.Error("SQLiteStore ListSavedResults query failed", "error", err, "fbid", fbid)
		return nil, fmt.Errorf("failed to query saved results: %w", err)
	}
	defer rows.Close()

	var results []SavedResult
	for rows.Next() {
		var r SavedResult
		if err := rows.Scan(&r.ID, &r.FBID, &r.Name, &r.Category, &r.SavedAt); err != nil {
			slog.Error("SQLiteStore ListSavedResults scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan saved result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved result rows: %w", err)
	}
	return results, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
