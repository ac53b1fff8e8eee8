// Package store provides storage backends for ResumeBot conversation state.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/CampusPe/ResumeBot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
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

// PostgresStore persists conversations, receipts, and responses in PostgreSQL.
// It is the backend for multi-process deployments where conversations must
// survive webhook routing to a different instance.
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

// GetConversation returns the conversation for a phone number, or nil if absent.
func (s *PostgresStore) GetConversation(phoneNumber string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT phone_number, step, name, email, job_description, attempt_count, created_at, last_activity
		 FROM conversations WHERE phone_number = $1`, phoneNumber)
	c, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversation not found", "phone", phoneNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "phone", phoneNumber)
		return nil, fmt.Errorf("failed to query conversation for %s: %w", phoneNumber, err)
	}
	return &c, nil
}

// SaveConversation inserts or replaces the conversation for its phone number.
func (s *PostgresStore) SaveConversation(c models.Conversation) error {
	_, err := s.db.Exec(
		`INSERT INTO conversations (phone_number, step, name, email, job_description, attempt_count, created_at, last_activity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (phone_number) DO UPDATE SET
		   step = EXCLUDED.step, name = EXCLUDED.name, email = EXCLUDED.email,
		   job_description = EXCLUDED.job_description, attempt_count = EXCLUDED.attempt_count,
		   last_activity = EXCLUDED.last_activity`,
		c.PhoneNumber, string(c.Step), nilIfEmpty(c.Name), nilIfEmpty(c.Email),
		nilIfEmpty(c.JobDescription), c.AttemptCount, c.CreatedAt, c.LastActivity)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "phone", c.PhoneNumber)
		return fmt.Errorf("failed to save conversation for %s: %w", c.PhoneNumber, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "phone", c.PhoneNumber, "step", c.Step)
	return nil
}

// DeleteConversation removes the conversation for a phone number.
func (s *PostgresStore) DeleteConversation(phoneNumber string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE phone_number = $1`, phoneNumber)
	if err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "phone", phoneNumber)
		return fmt.Errorf("failed to delete conversation for %s: %w", phoneNumber, err)
	}
	return nil
}

// ListConversations returns all conversations ordered by phone number.
func (s *PostgresStore) ListConversations() ([]models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT phone_number, step, name, email, job_description, attempt_count, created_at, last_activity
		 FROM conversations ORDER BY phone_number`)
	if err != nil {
		slog.Error("PostgresStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// SweepConversations deletes conversations inactive since before the cutoff.
func (s *PostgresStore) SweepConversations(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`DELETE FROM conversations WHERE last_activity < $1 RETURNING phone_number`, cutoff)
	if err != nil {
		slog.Error("PostgresStore SweepConversations failed", "error", err)
		return nil, fmt.Errorf("failed to sweep idle conversations: %w", err)
	}
	swept, err := collectPhones(rows)
	if err != nil {
		return nil, err
	}
	slog.Debug("PostgresStore SweepConversations succeeded", "count", len(swept))
	return swept, nil
}

// AddReceipt records an outbound message receipt.
func (s *PostgresStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, time) VALUES ($1, $2, $3)`,
		r.To, string(r.Status), r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

// GetReceipts returns all recorded receipts.
func (s *PostgresStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()
	return collectReceipts(rows)
}

// AddResponse records an inbound message.
func (s *PostgresStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, name, body, time) VALUES ($1, $2, $3, $4)`,
		r.From, nilIfEmpty(r.Name), r.Body, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

// GetResponses returns all recorded inbound messages.
func (s *PostgresStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, name, body, time FROM responses`)
	if err != nil {
		slog.Error("PostgresStore GetResponses query failed", "error", err)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()
	return collectResponses(rows)
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
