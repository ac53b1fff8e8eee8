// Package store provides storage backends for ResumeBot conversation state.
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

	"github.com/CampusPe/ResumeBot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversations, receipts, and responses in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options.
// The DSN is a file path; missing parent directories are created.
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

// GetConversation returns the conversation for a phone number, or nil if absent.
func (s *SQLiteStore) GetConversation(phoneNumber string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT phone_number, step, name, email, job_description, attempt_count, created_at, last_activity
		 FROM conversations WHERE phone_number = ?`, phoneNumber)
	c, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversation not found", "phone", phoneNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "phone", phoneNumber)
		return nil, fmt.Errorf("failed to query conversation for %s: %w", phoneNumber, err)
	}
	return &c, nil
}

// SaveConversation inserts or replaces the conversation for its phone number.
func (s *SQLiteStore) SaveConversation(c models.Conversation) error {
	_, err := s.db.Exec(
		`INSERT INTO conversations (phone_number, step, name, email, job_description, attempt_count, created_at, last_activity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(phone_number) DO UPDATE SET
		   step = excluded.step, name = excluded.name, email = excluded.email,
		   job_description = excluded.job_description, attempt_count = excluded.attempt_count,
		   last_activity = excluded.last_activity`,
		c.PhoneNumber, string(c.Step), nilIfEmpty(c.Name), nilIfEmpty(c.Email),
		nilIfEmpty(c.JobDescription), c.AttemptCount, c.CreatedAt, c.LastActivity)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "phone", c.PhoneNumber)
		return fmt.Errorf("failed to save conversation for %s: %w", c.PhoneNumber, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "phone", c.PhoneNumber, "step", c.Step)
	return nil
}

// DeleteConversation removes the conversation for a phone number.
func (s *SQLiteStore) DeleteConversation(phoneNumber string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE phone_number = ?`, phoneNumber)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "phone", phoneNumber)
		return fmt.Errorf("failed to delete conversation for %s: %w", phoneNumber, err)
	}
	return nil
}

// ListConversations returns all conversations ordered by phone number.
func (s *SQLiteStore) ListConversations() ([]models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT phone_number, step, name, email, job_description, attempt_count, created_at, last_activity
		 FROM conversations ORDER BY phone_number`)
	if err != nil {
		slog.Error("SQLiteStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// SweepConversations deletes conversations inactive since before the cutoff.
func (s *SQLiteStore) SweepConversations(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT phone_number FROM conversations WHERE last_activity < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore SweepConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query idle conversations: %w", err)
	}
	swept, err := collectPhones(rows)
	if err != nil {
		return nil, err
	}
	if len(swept) == 0 {
		return nil, nil
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE last_activity < ?`, cutoff); err != nil {
		slog.Error("SQLiteStore SweepConversations delete failed", "error", err)
		return nil, fmt.Errorf("failed to sweep idle conversations: %w", err)
	}
	slog.Debug("SQLiteStore SweepConversations succeeded", "count", len(swept))
	return swept, nil
}

// AddReceipt records an outbound message receipt.
func (s *SQLiteStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`, r.To, string(r.Status), r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

// GetReceipts returns all recorded receipts.
func (s *SQLiteStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()
	return collectReceipts(rows)
}

// AddResponse records an inbound message.
func (s *SQLiteStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, name, body, time) VALUES (?, ?, ?, ?)`,
		r.From, nilIfEmpty(r.Name), r.Body, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

// GetResponses returns all recorded inbound messages.
func (s *SQLiteStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, name, body, time FROM responses`)
	if err != nil {
		slog.Error("SQLiteStore GetResponses query failed", "error", err)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()
	return collectResponses(rows)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
