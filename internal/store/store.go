// Package store provides storage backends for ResumeBot conversation state.
//
// It includes an in-memory store for single-instance deployments along with
// SQLite and PostgreSQL backends for durable session tracking.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// Store is the persistence abstraction for conversation state and message
// bookkeeping. Conversations are keyed by digits-only phone number.
type Store interface {
	GetConversation(phoneNumber string) (*models.Conversation, error)
	SaveConversation(c models.Conversation) error
	DeleteConversation(phoneNumber string) error
	ListConversations() ([]models.Conversation, error)
	// SweepConversations deletes every conversation whose LastActivity is
	// before the cutoff, regardless of step, and returns the affected phone
	// numbers.
	SweepConversations(cutoff time.Time) ([]string, error)

	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	AddResponse(r models.Response) error
	GetResponses() ([]models.Response, error)

	Close() error
}

// InMemoryStore keeps all state in process memory. A restart drops in-flight
// conversations, which is the documented single-instance behavior.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	receipts      []models.Receipt
	responses     []models.Response
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.Conversation),
	}
}

// GetConversation returns the conversation for a phone number, or nil if absent.
func (s *InMemoryStore) GetConversation(phoneNumber string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[phoneNumber]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// SaveConversation inserts or replaces the conversation for its phone number.
func (s *InMemoryStore) SaveConversation(c models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.PhoneNumber] = c
	return nil
}

// DeleteConversation removes the conversation for a phone number. Deleting a
// missing conversation is not an error.
func (s *InMemoryStore) DeleteConversation(phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, phoneNumber)
	return nil
}

// ListConversations returns all conversations ordered by phone number.
func (s *InMemoryStore) ListConversations() ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhoneNumber < out[j].PhoneNumber })
	return out, nil
}

// SweepConversations deletes conversations inactive since before the cutoff.
func (s *InMemoryStore) SweepConversations(cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []string
	for phone, c := range s.conversations {
		if c.IdleSince(cutoff) {
			delete(s.conversations, phone)
			swept = append(swept, phone)
		}
	}
	return swept, nil
}

// AddReceipt records an outbound message receipt.
func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

// GetReceipts returns all recorded receipts.
func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

// AddResponse records an inbound message.
func (s *InMemoryStore) AddResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

// GetResponses returns all recorded inbound messages.
func (s *InMemoryStore) GetResponses() ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Response, len(s.responses))
	copy(out, s.responses)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
