// Package models defines conversation state structures for the resume flow.
package models

import (
	"fmt"
	"time"
)

// Step is a named stage of the resume conversation.
type Step string

const (
	// StepInitiated is the nominal starting stage; a freshly triggered
	// conversation moves to StepCollectingEmail immediately.
	StepInitiated Step = "initiated"
	// StepCollectingEmail waits for a valid email address.
	StepCollectingEmail Step = "collecting_email"
	// StepCollectingJobDescription waits for a job description of sufficient length.
	StepCollectingJobDescription Step = "collecting_job_description"
	// StepProcessing indicates resume generation is in progress.
	StepProcessing Step = "processing"
	// StepCompleted indicates the resume was generated and delivered.
	StepCompleted Step = "completed"
)

// stepTransitions is the closed forward-transition table. A conversation only
// ever advances along this table or is deleted; it never moves backward.
var stepTransitions = map[Step]Step{
	StepInitiated:                StepCollectingEmail,
	StepCollectingEmail:          StepCollectingJobDescription,
	StepCollectingJobDescription: StepProcessing,
	StepProcessing:               StepCompleted,
}

// IsValidStep checks whether s is a known conversation step.
func IsValidStep(s Step) bool {
	switch s {
	case StepInitiated, StepCollectingEmail, StepCollectingJobDescription, StepProcessing, StepCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one step to the next is allowed
// by the forward-transition table.
func CanTransition(from, to Step) bool {
	next, ok := stepTransitions[from]
	return ok && next == to
}

// NextStep returns the successor of the given step, or an error for terminal
// or unknown steps.
func NextStep(s Step) (Step, error) {
	next, ok := stepTransitions[s]
	if !ok {
		return "", fmt.Errorf("step %q has no successor", s)
	}
	return next, nil
}

// Conversation is the per-phone-number state of one resume flow.
type Conversation struct {
	PhoneNumber    string    `json:"phone_number"` // digits-only, primary key
	Step           Step      `json:"step"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	JobDescription string    `json:"job_description,omitempty"`
	AttemptCount   int       `json:"attempt_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// Touch updates the activity timestamp used by the idle reaper.
func (c *Conversation) Touch(now time.Time) {
	c.LastActivity = now
}

// IdleSince reports whether the conversation has been inactive past the cutoff.
func (c *Conversation) IdleSince(cutoff time.Time) bool {
	return c.LastActivity.Before(cutoff)
}
