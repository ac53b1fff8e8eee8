package store

import (
	"database/sql"
	"fmt"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanConversationRow scans a Conversation from a single sql.Row.
func scanConversationRow(row *sql.Row) (models.Conversation, error) {
	var c models.Conversation
	var step string
	var name, email, jobDescription sql.NullString
	err := row.Scan(&c.PhoneNumber, &step, &name, &email, &jobDescription,
		&c.AttemptCount, &c.CreatedAt, &c.LastActivity)
	if err != nil {
		return c, err
	}
	c.Step = models.Step(step)
	c.Name = name.String
	c.Email = email.String
	c.JobDescription = jobDescription.String
	return c, nil
}

// collectConversations scans all conversations from sql.Rows.
func collectConversations(rows *sql.Rows) ([]models.Conversation, error) {
	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var step string
		var name, email, jobDescription sql.NullString
		if err := rows.Scan(&c.PhoneNumber, &step, &name, &email, &jobDescription,
			&c.AttemptCount, &c.CreatedAt, &c.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		c.Step = models.Step(step)
		c.Name = name.String
		c.Email = email.String
		c.JobDescription = jobDescription.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}

// collectPhones scans phone numbers from sql.Rows.
func collectPhones(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("failed to scan phone number: %w", err)
		}
		out = append(out, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate phone rows: %w", err)
	}
	return out, nil
}

// collectReceipts scans all receipts from sql.Rows.
func collectReceipts(rows *sql.Rows) ([]models.Receipt, error) {
	var out []models.Receipt
	for rows.Next() {
		var r models.Receipt
		var status string
		if err := rows.Scan(&r.To, &status, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		r.Status = models.MessageStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return out, nil
}

// collectResponses scans all responses from sql.Rows.
func collectResponses(rows *sql.Rows) ([]models.Response, error) {
	var out []models.Response
	for rows.Next() {
		var r models.Response
		var name sql.NullString
		if err := rows.Scan(&r.From, &name, &r.Body, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		r.Name = name.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return out, nil
}
