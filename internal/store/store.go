// Package store provides user-profile storage backends for James.
//
// It includes an in-memory store for tests and development, plus SQLite
// and PostgreSQL backends selected by DSN detection.
package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// UserProfile is one known Messenger user.
type UserProfile struct {
	FBID      string    `json:"fbid"`
	FirstName string    `json:"first_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavedResult records a recommendation the user accepted.
type SavedResult struct {
	ID       int64     `json:"id"`
	FBID     string    `json:"fbid"`
	Name     string    `json:"name"`
	Category string    `json:"category,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store is the user-profile persistence abstraction.
type Store interface {
	// UpsertUser inserts or refreshes a user profile and reports whether
	// the user was seen for the first time.
	UpsertUser(fbid, firstName string) (wasNew bool, err error)

	// ListUsers returns all known user profiles.
	ListUsers() ([]UserProfile, error)

	// RecordSavedResult stores a recommendation the user accepted.
	RecordSavedResult(fbid, name, category string) error

	// ListSavedResults returns the accepted recommendations for a user.
	ListSavedResults(fbid string) ([]SavedResult, error)

	// Close releases the backend's resources.
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	DSN string
}

// Option defines a configuration option for the store.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres", "sqlite", or "memory".
func DetectDSNType(dsn string) string {
	if dsn == "" {
		return "memory"
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds a store for the configured DSN: Postgres for postgres
// connection strings, SQLite for file paths, in-memory when no DSN is set.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	switch DetectDSNType(cfg.DSN) {
	case "postgres":
		slog.Debug("store.NewStore: using PostgreSQL backend")
		return NewPostgresStore(opts...)
	case "sqlite":
		slog.Debug("store.NewStore: using SQLite backend", "path", cfg.DSN)
		return NewSQLiteStore(opts...)
	default:
		slog.Debug("store.NewStore: no DSN set, using in-memory backend")
		return NewInMemoryStore(), nil
	}
}

func validateUpsert(fbid string) error {
	if fbid == "" {
		return fmt.Errorf("fbid cannot be empty")
	}
	return nil
}
