// Package flow implements the WhatsApp resume-generation conversation flow.
package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/CampusPe/ResumeBot/internal/store"
)

// ConversationManager mediates all conversation state access through a Store
// backend and enforces the forward-only step transition table.
type ConversationManager struct {
	store store.Store
}

// NewConversationManager creates a manager backed by the given store.
func NewConversationManager(st store.Store) *ConversationManager {
	slog.Debug("Creating ConversationManager")
	return &ConversationManager{store: st}
}

// Get retrieves the conversation for a phone number, or nil if none exists.
func (m *ConversationManager) Get(phoneNumber string) (*models.Conversation, error) {
	c, err := m.store.GetConversation(phoneNumber)
	if err != nil {
		slog.Error("ConversationManager Get error", "error", err, "phone", phoneNumber)
		return nil, err
	}
	return c, nil
}

// Begin creates a fresh conversation at the email-collection step, discarding
// any prior state for the phone number.
func (m *ConversationManager) Begin(phoneNumber, name string) (models.Conversation, error) {
	now := time.Now()
	c := models.Conversation{
		PhoneNumber:  phoneNumber,
		Step:         models.StepInitiated,
		Name:         name,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.Transition(&c, models.StepCollectingEmail); err != nil {
		return c, err
	}
	if err := m.store.SaveConversation(c); err != nil {
		slog.Error("ConversationManager Begin save error", "error", err, "phone", phoneNumber)
		return c, err
	}
	slog.Info("ConversationManager conversation started", "phone", phoneNumber, "step", c.Step)
	return c, nil
}

// Save persists the conversation after updating its activity timestamp.
func (m *ConversationManager) Save(c *models.Conversation) error {
	c.Touch(time.Now())
	if err := m.store.SaveConversation(*c); err != nil {
		slog.Error("ConversationManager Save error", "error", err, "phone", c.PhoneNumber)
		return err
	}
	return nil
}

// Transition advances the conversation to the next step, validating the move
// against the transition table and resetting the per-step attempt counter.
// Illegal transitions are rejected, never applied.
func (m *ConversationManager) Transition(c *models.Conversation, to models.Step) error {
	if !models.CanTransition(c.Step, to) {
		err := fmt.Errorf("invalid step transition: %s -> %s", c.Step, to)
		slog.Error("ConversationManager Transition rejected", "error", err, "phone", c.PhoneNumber)
		return err
	}
	slog.Info("ConversationManager Transition", "phone", c.PhoneNumber, "from", c.Step, "to", to)
	c.Step = to
	c.AttemptCount = 0
	c.Touch(time.Now())
	return nil
}

// Delete removes any conversation for the phone number. Idempotent.
func (m *ConversationManager) Delete(phoneNumber string) error {
	if err := m.store.DeleteConversation(phoneNumber); err != nil {
		slog.Error("ConversationManager Delete error", "error", err, "phone", phoneNumber)
		return err
	}
	slog.Debug("ConversationManager Delete succeeded", "phone", phoneNumber)
	return nil
}
