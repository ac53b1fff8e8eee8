package store

import "strings"

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value form; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewFromOptions selects a backend from the configured DSN: in-memory when no
// DSN is set, otherwise PostgreSQL or SQLite by DSN shape.
func NewFromOptions(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
