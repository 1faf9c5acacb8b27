// Package store provides the persistence backends for TextPipe: the seen-set,
// message history, inbound deduplication and the scheduled-message outbox.
//
// SQLite is the default database; a Postgres DSN selects the Postgres backend.
package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// Store is the full database-backed persistence surface.
type Store interface {
	DedupRepo
	MessageStore
	OutboxRepo
	ContactStore

	// Close releases the underlying database connection.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for Postgres URLs and key/value DSNs,
// and "sqlite3" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") ||
		strings.Contains(d, "host=") || strings.Contains(d, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore opens the backend matching the DSN.
func NewStore(dsn string) (Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	switch DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("NewStore: detected PostgreSQL DSN", "dsn_type", "postgresql")
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Debug("NewStore: detected SQLite DSN", "db_path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}
