// Package models defines the core data structures for ResumeBot.
//
// It includes types for inbound WhatsApp messages, delivery receipts, and
// resume generation results, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Validation constants for conversation input.
const (
	// MinJobDescriptionLength is the minimum accepted length for a trimmed job description.
	MinJobDescriptionLength = 50
	// MaxAttemptsPerStep is the number of invalid submissions tolerated within a single step
	// before the conversation is reset.
	MaxAttemptsPerStep = 3
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptyMessage     = errors.New("message body cannot be empty")
	ErrEmptyPhoneNumber = errors.New("phone number cannot be empty")
)

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records the delivery status of an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming WhatsApp message from a user.
type Response struct {
	From string `json:"from"`
	Name string `json:"name,omitempty"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// WebhookMessage is the inbound payload relayed by the WABB webhook automation.
type WebhookMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

// Validate checks required webhook fields.
func (m *WebhookMessage) Validate() error {
	if m.Phone == "" {
		return ErrEmptyPhoneNumber
	}
	if m.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// GenerationRequest carries the inputs for a resume generation call.
type GenerationRequest struct {
	RequestID      string `json:"request_id,omitempty"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone"`
	JobDescription string `json:"jobDescription"`
	TargetRole     string `json:"targetRole,omitempty"`
}

// GenerationResult is the outcome reported by the resume generation service.
type GenerationResult struct {
	Success      bool   `json:"success"`
	FileName     string `json:"fileName,omitempty"`
	PDFSizeBytes int64  `json:"pdfSizeBytes,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
	Message      string `json:"message,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusAccepted indicates an inbound message was accepted for processing.
	APIStatusAccepted APIStatus = "accepted"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Accepted creates an API response for accepted webhook deliveries.
func Accepted() APIResponse {
	return APIResponse{Status: string(APIStatusAccepted)}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// TimerInfo describes an active cleanup timer for diagnostics.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description,omitempty"`
}
