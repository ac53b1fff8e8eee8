package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/CampusPe/ResumeBot/internal/store"
)

// sentMessage records one outbound delivery made through the mock messenger.
type sentMessage struct {
	To   string
	Body string
}

// mockMessenger records outbound messages for assertions.
type mockMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockMessenger) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return nil
}

func (m *mockMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// mockGenerator returns a canned result and records the request it received.
type mockGenerator struct {
	result  models.GenerationResult
	err     error
	lastReq models.GenerationRequest
	calls   int
}

func (g *mockGenerator) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	g.calls++
	g.lastReq = req
	return g.result, g.err
}

// mockTimer captures scheduled functions so tests can fire them synchronously.
type mockTimer struct {
	scheduled map[string]func()
	delays    map[string]time.Duration
	cancelled []string
}

func newMockTimer() *mockTimer {
	return &mockTimer{scheduled: make(map[string]func()), delays: make(map[string]time.Duration)}
}

func (t *mockTimer) ScheduleAfter(key string, delay time.Duration, fn func()) error {
	t.scheduled[key] = fn
	t.delays[key] = delay
	return nil
}

func (t *mockTimer) Cancel(key string) bool {
	t.cancelled = append(t.cancelled, key)
	if _, ok := t.scheduled[key]; !ok {
		return false
	}
	delete(t.scheduled, key)
	delete(t.delays, key)
	return true
}

func (t *mockTimer) Stop() {
	t.scheduled = make(map[string]func())
	t.delays = make(map[string]time.Duration)
}

// fire runs the scheduled function for a key, simulating timer expiry.
func (t *mockTimer) fire(key string) bool {
	fn, ok := t.scheduled[key]
	if !ok {
		return false
	}
	delete(t.scheduled, key)
	fn()
	return true
}

func newTestFlow(t *testing.T, gen *mockGenerator, opts ...FlowOption) (*ResumeFlow, *mockMessenger, *ConversationManager, *mockTimer) {
	t.Helper()
	st := store.NewInMemoryStore()
	manager := NewConversationManager(st)
	messenger := &mockMessenger{}
	timer := newMockTimer()
	opts = append([]FlowOption{WithTimer(timer)}, opts...)
	return NewResumeFlow(manager, messenger, gen, opts...), messenger, manager, timer
}

const testPhone = "919876543210"

// validJD is a job description comfortably above the minimum length with no
// keyword collisions.
const validJD = "We are seeking a backend engineer to design scalable APIs in Go for our platform."

func TestResumeFlow_TriggerCreatesConversation(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})

	if err := flow.HandleMessage(context.Background(), testPhone, "John", "resume"); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	conv, err := manager.Get(testPhone)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation to exist after trigger")
	}
	if conv.Step != models.StepCollectingEmail {
		t.Errorf("expected step %s, got %s", models.StepCollectingEmail, conv.Step)
	}
	if conv.AttemptCount != 0 {
		t.Errorf("expected attempt count 0, got %d", conv.AttemptCount)
	}
	if conv.Name != "John" {
		t.Errorf("expected name John, got %q", conv.Name)
	}

	want := fmt.Sprintf(emailPromptMessage, "John")
	if got := messenger.last(); got.Body != want {
		t.Errorf("expected email prompt, got %q", got.Body)
	}
}

func TestResumeFlow_TriggerWithoutNameUsesFallbackGreeting(t *testing.T) {
	flow, messenger, _, _ := newTestFlow(t, &mockGenerator{})

	if err := flow.HandleMessage(context.Background(), testPhone, "", "I want a CV please"); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	want := fmt.Sprintf(emailPromptMessage, "there")
	if got := messenger.last(); got.Body != want {
		t.Errorf("expected fallback greeting prompt, got %q", got.Body)
	}
}

func TestResumeFlow_UnknownSenderGetsWelcome(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})

	if err := flow.HandleMessage(context.Background(), testPhone, "John", "hi"); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if got := messenger.last(); got.Body != welcomeMessage {
		t.Errorf("expected welcome message, got %q", got.Body)
	}
	conv, err := manager.Get(testPhone)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv != nil {
		t.Error("expected no conversation for a non-trigger message")
	}
}

func TestResumeFlow_HelpKeyword(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})

	if err := flow.HandleMessage(context.Background(), testPhone, "John", "help"); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if got := messenger.last(); got.Body != helpMessage {
		t.Errorf("expected help message, got %q", got.Body)
	}
	conv, _ := manager.Get(testPhone)
	if conv != nil {
		t.Error("expected help not to create a conversation")
	}
}

func TestResumeFlow_CancelIsIdempotent(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})
	ctx := context.Background()

	// Cancel with no conversation at all still acknowledges.
	if err := flow.HandleMessage(ctx, testPhone, "John", "cancel"); err != nil {
		t.Fatalf("cancel without conversation failed: %v", err)
	}
	if got := messenger.last(); got.Body != cancelledMessage {
		t.Errorf("expected cancelled message, got %q", got.Body)
	}

	// Start, cancel, then cancel again.
	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "cancel"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	conv, _ := manager.Get(testPhone)
	if conv != nil {
		t.Error("expected conversation deleted after cancel")
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "stop"); err != nil {
		t.Fatalf("repeat cancel failed: %v", err)
	}
	if got := messenger.last(); got.Body != cancelledMessage {
		t.Errorf("expected cancelled message on repeat, got %q", got.Body)
	}
}

func TestResumeFlow_InvalidEmailAttemptPolicy(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	// Three invalid submissions are tolerated with a reprompt each time.
	for attempt := 1; attempt <= models.MaxAttemptsPerStep; attempt++ {
		if err := flow.HandleMessage(ctx, testPhone, "John", "not an email"); err != nil {
			t.Fatalf("attempt %d failed: %v", attempt, err)
		}
		conv, err := manager.Get(testPhone)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if conv == nil {
			t.Fatalf("conversation deleted too early on attempt %d", attempt)
		}
		if conv.AttemptCount != attempt {
			t.Errorf("attempt %d: expected attempt count %d, got %d", attempt, attempt, conv.AttemptCount)
		}
		want := fmt.Sprintf(invalidEmailMessage, attempt, models.MaxAttemptsPerStep)
		if got := messenger.last(); got.Body != want {
			t.Errorf("attempt %d: expected %q, got %q", attempt, want, got.Body)
		}
	}

	// The fourth consecutive failure deletes the conversation.
	if err := flow.HandleMessage(ctx, testPhone, "John", "still not an email"); err != nil {
		t.Fatalf("final attempt failed: %v", err)
	}
	conv, _ := manager.Get(testPhone)
	if conv != nil {
		t.Error("expected conversation deleted after attempts exhausted")
	}
	if got := messenger.last(); got.Body != attemptsExhaustedMessage {
		t.Errorf("expected attempts exhausted message, got %q", got.Body)
	}
}

func TestResumeFlow_ValidEmailAdvancesAndLowercases(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	// One failure first so the reset of the attempt counter is observable.
	if err := flow.HandleMessage(ctx, testPhone, "John", "nope"); err != nil {
		t.Fatalf("invalid email failed: %v", err)
	}

	if err := flow.HandleMessage(ctx, testPhone, "John", "My email is John.Doe@Example.COM thanks"); err != nil {
		t.Fatalf("valid email failed: %v", err)
	}

	conv, err := manager.Get(testPhone)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation to survive email step")
	}
	if conv.Step != models.StepCollectingJobDescription {
		t.Errorf("expected step %s, got %s", models.StepCollectingJobDescription, conv.Step)
	}
	if conv.Email != "john.doe@example.com" {
		t.Errorf("expected lowercased extracted email, got %q", conv.Email)
	}
	if conv.AttemptCount != 0 {
		t.Errorf("expected attempt counter reset, got %d", conv.AttemptCount)
	}
	if got := messenger.last(); got.Body != jobDescriptionPromptMessage {
		t.Errorf("expected job description prompt, got %q", got.Body)
	}
}

func TestResumeFlow_ShortJobDescriptionPolicy(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}

	// Whitespace padding does not count toward the minimum length.
	padded := "   too short   "
	if err := flow.HandleMessage(ctx, testPhone, "John", padded); err != nil {
		t.Fatalf("short JD failed: %v", err)
	}
	conv, _ := manager.Get(testPhone)
	if conv == nil {
		t.Fatal("expected conversation to survive first short JD")
	}
	if conv.Step != models.StepCollectingJobDescription {
		t.Errorf("expected step unchanged, got %s", conv.Step)
	}
	if conv.AttemptCount != 1 {
		t.Errorf("expected attempt count 1, got %d", conv.AttemptCount)
	}
	want := fmt.Sprintf(shortJobDescriptionMessage, models.MinJobDescriptionLength, 1, models.MaxAttemptsPerStep)
	if got := messenger.last(); got.Body != want {
		t.Errorf("expected short JD reprompt, got %q", got.Body)
	}
}

func TestResumeFlow_ShortJobDescriptionExhaustion(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}

	// The job-description step tolerates the same number of failures as the
	// email step: three reprompts, deletion on the fourth.
	for attempt := 1; attempt <= models.MaxAttemptsPerStep; attempt++ {
		if err := flow.HandleMessage(ctx, testPhone, "John", "too short"); err != nil {
			t.Fatalf("attempt %d failed: %v", attempt, err)
		}
		conv, err := manager.Get(testPhone)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if conv == nil {
			t.Fatalf("conversation deleted too early on attempt %d", attempt)
		}
		if conv.AttemptCount != attempt {
			t.Errorf("attempt %d: expected attempt count %d, got %d", attempt, attempt, conv.AttemptCount)
		}
		want := fmt.Sprintf(shortJobDescriptionMessage, models.MinJobDescriptionLength, attempt, models.MaxAttemptsPerStep)
		if got := messenger.last(); got.Body != want {
			t.Errorf("attempt %d: expected %q, got %q", attempt, want, got.Body)
		}
	}

	if err := flow.HandleMessage(ctx, testPhone, "John", "still too short"); err != nil {
		t.Fatalf("final attempt failed: %v", err)
	}
	conv, _ := manager.Get(testPhone)
	if conv != nil {
		t.Error("expected conversation deleted after attempts exhausted")
	}
	if got := messenger.last(); got.Body != attemptsExhaustedMessage {
		t.Errorf("expected attempts exhausted message, got %q", got.Body)
	}
}

func TestResumeFlow_GenerationSuccessEndToEnd(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{
		Success:      true,
		FileName:     "john_resume.pdf",
		PDFSizeBytes: 204800,
		DownloadURL:  "https://files.example.com/john_resume.pdf",
	}}
	flow, messenger, manager, timer := newTestFlow(t, gen)
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	if gen.calls != 1 {
		t.Fatalf("expected one generation call, got %d", gen.calls)
	}
	if gen.lastReq.Email != "john@example.com" {
		t.Errorf("generator got email %q", gen.lastReq.Email)
	}
	if gen.lastReq.PhoneNumber != testPhone {
		t.Errorf("generator got phone %q", gen.lastReq.PhoneNumber)
	}
	if gen.lastReq.JobDescription != validJD {
		t.Errorf("generator got job description %q", gen.lastReq.JobDescription)
	}

	conv, err := manager.Get(testPhone)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation retained after success")
	}
	if conv.Step != models.StepCompleted {
		t.Errorf("expected step %s, got %s", models.StepCompleted, conv.Step)
	}

	last := messenger.last()
	if !strings.Contains(last.Body, "john_resume.pdf") || !strings.Contains(last.Body, "200.0 KB") {
		t.Errorf("success message missing file details: %q", last.Body)
	}
	if !strings.Contains(last.Body, gen.result.DownloadURL) {
		t.Errorf("success message missing download URL: %q", last.Body)
	}

	// Grace-period deletion is scheduled, and firing it removes the state.
	if timer.delays[testPhone] != DefaultGracePeriod {
		t.Errorf("expected grace delay %v, got %v", DefaultGracePeriod, timer.delays[testPhone])
	}
	if !timer.fire(testPhone) {
		t.Fatal("expected a scheduled cleanup timer")
	}
	conv, _ = manager.Get(testPhone)
	if conv != nil {
		t.Error("expected conversation deleted after grace period")
	}
}

func TestResumeFlow_GenerationErrorDeletesImmediately(t *testing.T) {
	gen := &mockGenerator{err: errors.New("generation service unreachable")}
	flow, messenger, manager, timer := newTestFlow(t, gen)
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	conv, _ := manager.Get(testPhone)
	if conv != nil {
		t.Error("expected conversation deleted on generation error")
	}
	if len(timer.scheduled) != 0 {
		t.Error("expected no grace timer on failure")
	}
	if got := messenger.last(); !strings.Contains(got.Body, "generation service unreachable") {
		t.Errorf("failure message missing reason: %q", got.Body)
	}
}

func TestResumeFlow_GenerationReportedFailureRelaysReason(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{
		Success: false,
		Message: "no profile found for this email",
	}}
	flow, messenger, manager, _ := newTestFlow(t, gen)
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	conv, _ := manager.Get(testPhone)
	if conv != nil {
		t.Error("expected conversation deleted on reported failure")
	}
	want := fmt.Sprintf(failureMessage, "no profile found for this email")
	if got := messenger.last(); got.Body != want {
		t.Errorf("expected %q, got %q", want, got.Body)
	}
}

func TestResumeFlow_ProcessingAndCompletedNotices(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{Success: true, FileName: "r.pdf", PDFSizeBytes: 1024, DownloadURL: "https://x/r.pdf"}}
	flow, messenger, manager, _ := newTestFlow(t, gen)
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	// A follow-up message while completed replies with the completed notice
	// and leaves the state untouched.
	if err := flow.HandleMessage(ctx, testPhone, "John", "did it work?"); err != nil {
		t.Fatalf("completed follow-up failed: %v", err)
	}
	if got := messenger.last(); got.Body != completedNoticeMessage {
		t.Errorf("expected completed notice, got %q", got.Body)
	}
	conv, _ := manager.Get(testPhone)
	if conv == nil || conv.Step != models.StepCompleted {
		t.Error("expected completed conversation preserved by the notice")
	}
}

func TestResumeFlow_RestartCancelsPendingCleanup(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{Success: true, FileName: "r.pdf", PDFSizeBytes: 1024, DownloadURL: "https://x/r.pdf"}}
	flow, _, manager, timer := newTestFlow(t, gen)
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}
	if _, ok := timer.scheduled[testPhone]; !ok {
		t.Fatal("expected a pending cleanup timer after success")
	}

	// Restarting must discard the pending deletion so the new conversation
	// does not get clobbered mid-flight.
	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if _, ok := timer.scheduled[testPhone]; ok {
		t.Error("expected pending cleanup timer cancelled on restart")
	}
	conv, _ := manager.Get(testPhone)
	if conv == nil || conv.Step != models.StepCollectingEmail {
		t.Error("expected a fresh conversation at the email step after restart")
	}
}

func TestResumeFlow_LateGraceExpiryDoesNotClobberRestart(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{Success: true, FileName: "r.pdf", PDFSizeBytes: 1024, DownloadURL: "https://x/r.pdf"}}
	flow, _, manager, timer := newTestFlow(t, gen)
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	// Capture the scheduled callback before the restart, simulating a timer
	// the runtime has already dispatched when Cancel runs.
	expire, ok := timer.scheduled[testPhone]
	if !ok {
		t.Fatal("expected a pending cleanup timer after success")
	}

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	expire()

	conv, err := manager.Get(testPhone)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected restarted conversation to survive a late grace expiry")
	}
	if conv.Step != models.StepCollectingEmail {
		t.Errorf("expected step %s, got %s", models.StepCollectingEmail, conv.Step)
	}
}

func TestResumeFlow_GraceExpiryDeletesCompletedConversation(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{Success: true, FileName: "r.pdf", PDFSizeBytes: 1024, DownloadURL: "https://x/r.pdf"}}
	flow, _, manager, _ := newTestFlow(t, gen, WithTimer(NewCleanupTimer()), WithGracePeriod(10*time.Millisecond))
	defer flow.Stop()
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conv, err := manager.Get(testPhone)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if conv == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected completed conversation deleted after the grace period")
}

func TestResumeFlow_PhoneNumberNormalization(t *testing.T) {
	flow, _, manager, _ := newTestFlow(t, &mockGenerator{})
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, "+91 98765-43210", "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	conv, err := manager.Get(testPhone)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation stored under the canonical phone number")
	}

	// A differently formatted number for the same digits hits the same state.
	if err := flow.HandleMessage(ctx, "(91) 9876543210", "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	conv, _ = manager.Get(testPhone)
	if conv == nil || conv.Step != models.StepCollectingJobDescription {
		t.Error("expected email step handled under the canonical phone number")
	}

	if err := flow.HandleMessage(ctx, "", "John", "resume"); err == nil {
		t.Error("expected error for a phone number with no digits")
	}
}

func TestResumeFlow_ProfileLookupOnlyChangesWording(t *testing.T) {
	flow, messenger, _, _ := newTestFlow(t, &mockGenerator{}, WithProfileLookup(profileLookupFunc(func(ctx context.Context, email string) (bool, error) {
		return true, nil
	})))
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if got := messenger.last(); got.Body != jobDescriptionPromptKnownMessage {
		t.Errorf("expected registered-profile prompt, got %q", got.Body)
	}
}

func TestResumeFlow_ProfileLookupFailureDoesNotBlock(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{}, WithProfileLookup(profileLookupFunc(func(ctx context.Context, email string) (bool, error) {
		return false, errors.New("platform unreachable")
	})))
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	conv, _ := manager.Get(testPhone)
	if conv == nil || conv.Step != models.StepCollectingJobDescription {
		t.Error("expected flow to advance despite lookup failure")
	}
	if got := messenger.last(); got.Body != jobDescriptionPromptMessage {
		t.Errorf("expected default prompt on lookup failure, got %q", got.Body)
	}
}

func TestResumeFlow_JobAnalyzerEnrichesAckAndRequest(t *testing.T) {
	gen := &mockGenerator{result: models.GenerationResult{Success: true, FileName: "r.pdf", PDFSizeBytes: 1024, DownloadURL: "https://x/r.pdf"}}
	flow, messenger, _, _ := newTestFlow(t, gen, WithJobAnalyzer(jobAnalyzerFunc(func(ctx context.Context, jd string) (string, error) {
		return "Backend Engineer", nil
	})))
	ctx := context.Background()

	if err := flow.HandleMessage(ctx, testPhone, "John", "resume"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", "john@example.com"); err != nil {
		t.Fatalf("email failed: %v", err)
	}
	if err := flow.HandleMessage(ctx, testPhone, "John", validJD); err != nil {
		t.Fatalf("job description failed: %v", err)
	}

	if gen.lastReq.TargetRole != "Backend Engineer" {
		t.Errorf("expected target role in generation request, got %q", gen.lastReq.TargetRole)
	}
	foundAck := false
	want := fmt.Sprintf(processingAckRoleMessage, "Backend Engineer")
	messenger.mu.Lock()
	for _, m := range messenger.sent {
		if m.Body == want {
			foundAck = true
		}
	}
	messenger.mu.Unlock()
	if !foundAck {
		t.Errorf("expected role-specific processing ack %q", want)
	}
}

func TestResumeFlow_SendFailureDoesNotAbortRouting(t *testing.T) {
	flow, messenger, manager, _ := newTestFlow(t, &mockGenerator{})
	messenger.err = errors.New("relay down")

	if err := flow.HandleMessage(context.Background(), testPhone, "John", "resume"); err != nil {
		t.Fatalf("expected delivery failure to be swallowed, got %v", err)
	}
	conv, _ := manager.Get(testPhone)
	if conv == nil {
		t.Error("expected conversation created despite delivery failure")
	}
}

// profileLookupFunc adapts a function to the ProfileLookup interface.
type profileLookupFunc func(ctx context.Context, email string) (bool, error)

func (f profileLookupFunc) Exists(ctx context.Context, email string) (bool, error) {
	return f(ctx, email)
}

// jobAnalyzerFunc adapts a function to the JobAnalyzer interface.
type jobAnalyzerFunc func(ctx context.Context, jobDescription string) (string, error)

func (f jobAnalyzerFunc) ExtractTargetRole(ctx context.Context, jobDescription string) (string, error) {
	return f(ctx, jobDescription)
}

func TestFormatPDFSize(t *testing.T) {
	if got := formatPDFSize(204800); got != "200.0 KB" {
		t.Errorf("expected 200.0 KB, got %q", got)
	}
	if got := formatPDFSize(0); got != "unknown size" {
		t.Errorf("expected unknown size for zero bytes, got %q", got)
	}
}
