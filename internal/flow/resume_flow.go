// Package flow implements the WhatsApp resume-generation conversation flow.
//
// The flow walks a user from a "resume" trigger through email and
// job-description collection to a generated resume download link, tracking
// per-phone-number state behind the store abstraction.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// Default flow configuration.
const (
	// DefaultGracePeriod is how long a completed conversation is kept so a
	// user can still reference it before it is deleted.
	DefaultGracePeriod = 5 * time.Minute
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	digitRegex = regexp.MustCompile(`[^0-9]`)
)

// MessagingService is the outbound messaging dependency of the flow.
type MessagingService interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ResumeGenerator is the terminal collaborator that produces the resume PDF.
// It is treated as an opaque, potentially slow, fallible operation.
type ResumeGenerator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error)
}

// ProfileLookup checks whether an email belongs to a registered profile. Its
// outcome only customizes prompt wording and never blocks flow progression.
type ProfileLookup interface {
	Exists(ctx context.Context, email string) (bool, error)
}

// JobAnalyzer optionally extracts a target-role label from a job description.
type JobAnalyzer interface {
	ExtractTargetRole(ctx context.Context, jobDescription string) (string, error)
}

// ResumeFlow routes inbound messages to step handlers and owns conversation
// lifecycle, including grace-period cleanup after completion.
type ResumeFlow struct {
	manager     *ConversationManager
	msgService  MessagingService
	generator   ResumeGenerator
	profiles    ProfileLookup // optional
	analyzer    JobAnalyzer   // optional
	timer       Timer
	gracePeriod time.Duration

	// locks serializes handling per phone number so overlapping webhook
	// deliveries for the same sender cannot interleave state mutations.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// FlowOption configures a ResumeFlow.
type FlowOption func(*ResumeFlow)

// WithProfileLookup attaches a profile lookup used to word the job-description prompt.
func WithProfileLookup(p ProfileLookup) FlowOption {
	return func(f *ResumeFlow) { f.profiles = p }
}

// WithJobAnalyzer attaches an optional job-description analyzer.
func WithJobAnalyzer(a JobAnalyzer) FlowOption {
	return func(f *ResumeFlow) { f.analyzer = a }
}

// WithGracePeriod overrides the post-completion retention window.
func WithGracePeriod(d time.Duration) FlowOption {
	return func(f *ResumeFlow) { f.gracePeriod = d }
}

// WithTimer overrides the cleanup timer implementation.
func WithTimer(t Timer) FlowOption {
	return func(f *ResumeFlow) { f.timer = t }
}

// NewResumeFlow creates the flow engine with its required collaborators.
func NewResumeFlow(manager *ConversationManager, msgService MessagingService, generator ResumeGenerator, opts ...FlowOption) *ResumeFlow {
	f := &ResumeFlow{
		manager:     manager,
		msgService:  msgService,
		generator:   generator,
		timer:       NewCleanupTimer(),
		gracePeriod: DefaultGracePeriod,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(f)
	}
	slog.Debug("ResumeFlow created", "gracePeriod", f.gracePeriod, "hasProfiles", f.profiles != nil, "hasAnalyzer", f.analyzer != nil)
	return f
}

// NormalizePhoneNumber strips every non-digit character from a phone number.
func NormalizePhoneNumber(phone string) string {
	return digitRegex.ReplaceAllString(phone, "")
}

// Stop cancels all pending cleanup timers.
func (f *ResumeFlow) Stop() {
	f.timer.Stop()
}

// phoneLock returns the mutex that serializes handling for a phone number.
func (f *ResumeFlow) phoneLock(phone string) *sync.Mutex {
	f.locksMu.Lock()
	defer f.locksMu.Unlock()
	mu, ok := f.locks[phone]
	if !ok {
		mu = &sync.Mutex{}
		f.locks[phone] = mu
	}
	return mu
}

// HandleMessage routes one inbound message for a sender. The phone number may
// arrive in arbitrary formatting; it is normalized to digits before any state
// access. Outbound delivery failures are logged and swallowed, so routing
// itself only fails on state errors.
func (f *ResumeFlow) HandleMessage(ctx context.Context, phone, name, text string) error {
	canonical := NormalizePhoneNumber(phone)
	if canonical == "" {
		return fmt.Errorf("invalid phone number: no digits found in %q", phone)
	}

	mu := f.phoneLock(canonical)
	mu.Lock()
	defer mu.Unlock()

	lowered := strings.ToLower(text)
	slog.Debug("ResumeFlow handling message", "phone", canonical, "body_length", len(text))

	switch {
	case containsAny(lowered, "resume", "cv", "start"):
		return f.startConversation(ctx, canonical, name)
	case strings.Contains(lowered, "help"):
		f.send(ctx, canonical, helpMessage)
		return nil
	case containsAny(lowered, "cancel", "stop"):
		return f.cancelConversation(ctx, canonical)
	}

	conv, err := f.manager.Get(canonical)
	if err != nil {
		return err
	}
	if conv == nil {
		f.send(ctx, canonical, welcomeMessage)
		return nil
	}

	// Every inbound message refreshes the activity timestamp the reaper uses.
	if err := f.manager.Save(conv); err != nil {
		return err
	}

	switch conv.Step {
	case models.StepCollectingEmail:
		return f.handleEmailStep(ctx, conv, text)
	case models.StepCollectingJobDescription:
		return f.handleJobDescriptionStep(ctx, conv, text)
	case models.StepProcessing:
		f.send(ctx, canonical, processingNoticeMessage)
		return nil
	case models.StepCompleted:
		f.send(ctx, canonical, completedNoticeMessage)
		return nil
	default:
		slog.Warn("ResumeFlow no handler for step", "phone", canonical, "step", conv.Step)
		f.send(ctx, canonical, welcomeMessage)
		return nil
	}
}

// startConversation discards any prior state for the sender and begins a new
// flow at the email-collection step.
func (f *ResumeFlow) startConversation(ctx context.Context, phone, name string) error {
	// A pending grace deletion from an earlier completed flow must not fire
	// after the new conversation is created.
	f.timer.Cancel(phone)

	conv, err := f.manager.Begin(phone, name)
	if err != nil {
		return err
	}

	greeting := "there"
	if conv.Name != "" {
		greeting = conv.Name
	}
	f.send(ctx, phone, fmt.Sprintf(emailPromptMessage, greeting))
	return nil
}

// cancelConversation deletes any state for the sender. Idempotent: cancelling
// twice produces the same acknowledgment both times.
func (f *ResumeFlow) cancelConversation(ctx context.Context, phone string) error {
	f.timer.Cancel(phone)
	if err := f.manager.Delete(phone); err != nil {
		return err
	}
	slog.Info("ResumeFlow conversation cancelled", "phone", phone)
	f.send(ctx, phone, cancelledMessage)
	return nil
}

// handleEmailStep validates the email submission for the collecting_email step.
func (f *ResumeFlow) handleEmailStep(ctx context.Context, conv *models.Conversation, text string) error {
	match := emailRegex.FindString(text)
	if match == "" {
		return f.rejectAttempt(ctx, conv, fmt.Sprintf(invalidEmailMessage, conv.AttemptCount+1, models.MaxAttemptsPerStep))
	}

	conv.Email = strings.ToLower(match)
	if err := f.manager.Transition(conv, models.StepCollectingJobDescription); err != nil {
		return err
	}
	if err := f.manager.Save(conv); err != nil {
		return err
	}
	slog.Info("ResumeFlow email collected", "phone", conv.PhoneNumber, "email", conv.Email)

	// Best-effort lookup: a failure or negative result only changes wording.
	registered := false
	if f.profiles != nil {
		exists, err := f.profiles.Exists(ctx, conv.Email)
		if err != nil {
			slog.Warn("ResumeFlow profile lookup failed", "error", err, "email", conv.Email)
		} else {
			registered = exists
		}
	}
	if registered {
		f.send(ctx, conv.PhoneNumber, jobDescriptionPromptKnownMessage)
	} else {
		f.send(ctx, conv.PhoneNumber, jobDescriptionPromptMessage)
	}
	return nil
}

// handleJobDescriptionStep validates the job description, then runs resume
// generation synchronously and relays the outcome.
func (f *ResumeFlow) handleJobDescriptionStep(ctx context.Context, conv *models.Conversation, text string) error {
	jd := strings.TrimSpace(text)
	if len(jd) < models.MinJobDescriptionLength {
		return f.rejectAttempt(ctx, conv, fmt.Sprintf(shortJobDescriptionMessage,
			models.MinJobDescriptionLength, conv.AttemptCount+1, models.MaxAttemptsPerStep))
	}

	conv.JobDescription = jd
	if err := f.manager.Transition(conv, models.StepProcessing); err != nil {
		return err
	}
	if err := f.manager.Save(conv); err != nil {
		return err
	}

	// Best-effort role extraction to enrich the ack and the generation request.
	targetRole := ""
	if f.analyzer != nil {
		role, err := f.analyzer.ExtractTargetRole(ctx, jd)
		if err != nil {
			slog.Warn("ResumeFlow job analysis failed", "error", err, "phone", conv.PhoneNumber)
		} else {
			targetRole = role
		}
	}
	if targetRole != "" {
		f.send(ctx, conv.PhoneNumber, fmt.Sprintf(processingAckRoleMessage, targetRole))
	} else {
		f.send(ctx, conv.PhoneNumber, processingAckMessage)
	}

	result, err := f.generator.Generate(ctx, models.GenerationRequest{
		Email:          conv.Email,
		PhoneNumber:    conv.PhoneNumber,
		JobDescription: conv.JobDescription,
		TargetRole:     targetRole,
	})
	if err != nil {
		slog.Error("ResumeFlow generation error", "error", err, "phone", conv.PhoneNumber)
		return f.failConversation(ctx, conv, err.Error())
	}
	if !result.Success {
		slog.Warn("ResumeFlow generation reported failure", "phone", conv.PhoneNumber, "message", result.Message)
		return f.failConversation(ctx, conv, result.Message)
	}

	if err := f.manager.Transition(conv, models.StepCompleted); err != nil {
		return err
	}
	if err := f.manager.Save(conv); err != nil {
		return err
	}
	slog.Info("ResumeFlow generation succeeded", "phone", conv.PhoneNumber, "file", result.FileName, "bytes", result.PDFSizeBytes)

	f.send(ctx, conv.PhoneNumber, fmt.Sprintf(successMessage,
		result.FileName, formatPDFSize(result.PDFSizeBytes), result.DownloadURL))

	// Keep the completed conversation around for a grace window so the user
	// can still reference it, then delete.
	phone := conv.PhoneNumber
	if err := f.timer.ScheduleAfter(phone, f.gracePeriod, func() {
		f.expireCompleted(phone)
	}); err != nil {
		slog.Error("ResumeFlow failed to schedule grace deletion", "error", err, "phone", phone)
	}
	return nil
}

// expireCompleted runs when the post-completion grace window elapses. Cancel
// cannot stop a callback the runtime has already dispatched, so a restart can
// race the expiry; the delete therefore happens under the phone lock and only
// while the stored conversation is still completed.
func (f *ResumeFlow) expireCompleted(phone string) {
	mu := f.phoneLock(phone)
	mu.Lock()
	defer mu.Unlock()

	conv, err := f.manager.Get(phone)
	if err != nil {
		slog.Error("ResumeFlow grace deletion lookup failed", "error", err, "phone", phone)
		return
	}
	if conv == nil || conv.Step != models.StepCompleted {
		slog.Debug("ResumeFlow grace deletion skipped, state no longer completed", "phone", phone)
		return
	}
	if err := f.manager.Delete(phone); err != nil {
		slog.Error("ResumeFlow grace deletion failed", "error", err, "phone", phone)
	}
}

// rejectAttempt applies the shared retry policy: bump the attempt counter,
// reprompt while attempts remain, otherwise delete the conversation and
// instruct the user to restart.
func (f *ResumeFlow) rejectAttempt(ctx context.Context, conv *models.Conversation, reprompt string) error {
	conv.AttemptCount++
	if conv.AttemptCount > models.MaxAttemptsPerStep {
		slog.Info("ResumeFlow attempts exhausted", "phone", conv.PhoneNumber, "step", conv.Step)
		if err := f.manager.Delete(conv.PhoneNumber); err != nil {
			return err
		}
		f.send(ctx, conv.PhoneNumber, attemptsExhaustedMessage)
		return nil
	}
	if err := f.manager.Save(conv); err != nil {
		return err
	}
	f.send(ctx, conv.PhoneNumber, reprompt)
	return nil
}

// failConversation relays a generation failure and deletes the conversation
// immediately. Unlike the success path there is no grace window; the user
// must retype "resume" to start over.
func (f *ResumeFlow) failConversation(ctx context.Context, conv *models.Conversation, reason string) error {
	if reason == "" {
		reason = "resume generation failed"
	}
	f.send(ctx, conv.PhoneNumber, fmt.Sprintf(failureMessage, reason))
	return f.manager.Delete(conv.PhoneNumber)
}

// send delivers a message best-effort. Delivery failures are logged and
// swallowed: the user-facing feedback already happened in-band through the
// attempted message, and the flow must not unwind past the router on them.
func (f *ResumeFlow) send(ctx context.Context, to, body string) {
	if err := f.msgService.SendMessage(ctx, to, body); err != nil {
		slog.Error("ResumeFlow failed to send message", "error", err, "to", to)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// formatPDFSize renders a byte count in KB for the success message.
func formatPDFSize(bytes int64) string {
	if bytes <= 0 {
		return "unknown size"
	}
	return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
}
