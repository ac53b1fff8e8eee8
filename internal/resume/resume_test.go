package resume

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/CampusPe/ResumeBot/internal/models"
)

func TestClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error without endpoint")
	}
}

func TestGenerateSuccess(t *testing.T) {
	var received models.GenerationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", auth)
		}
		json.NewEncoder(w).Encode(models.GenerationResult{
			Success:      true,
			FileName:     "jane_resume.pdf",
			PDFSizeBytes: 102400,
			DownloadURL:  "https://files.example.com/jane_resume.pdf",
		})
	}))
	defer server.Close()

	client, err := NewClient(WithEndpoint(server.URL), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Generate(context.Background(), models.GenerationRequest{
		Email:          "jane@example.com",
		PhoneNumber:    "919876543210",
		JobDescription: "backend engineer role",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !result.Success || result.FileName != "jane_resume.pdf" {
		t.Errorf("result mismatch: %+v", result)
	}
	if received.Email != "jane@example.com" || received.PhoneNumber != "919876543210" {
		t.Errorf("request mismatch: %+v", received)
	}
	// A correlation ID is assigned when the caller does not provide one.
	if received.RequestID == "" {
		t.Error("expected a generated request ID")
	}
}

func TestGenerateFallsBackToSecondaryEndpoint(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.GenerationResult{Success: true, FileName: "fallback.pdf"})
	}))
	defer secondary.Close()

	client, err := NewClient(WithEndpoint(primary.URL), WithFallbackEndpoints(secondary.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Generate(context.Background(), models.GenerationRequest{Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.FileName != "fallback.pdf" {
		t.Errorf("expected fallback result, got %+v", result)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(models.GenerationResult{Success: true, FileName: "retried.pdf"})
	}))
	defer server.Close()

	client, err := NewClient(WithEndpoint(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	result, err := client.Generate(context.Background(), models.GenerationRequest{Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.FileName != "retried.pdf" {
		t.Errorf("expected retried result, got %+v", result)
	}
	if calls.Load() < 2 {
		t.Errorf("expected a retry after 503, got %d calls", calls.Load())
	}
}

func TestGenerateReportedFailureIsNotChained(t *testing.T) {
	var secondaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.GenerationResult{Success: false, Message: "no profile found"})
	}))
	defer primary.Close()
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryCalls.Add(1)
		json.NewEncoder(w).Encode(models.GenerationResult{Success: true})
	}))
	defer secondary.Close()

	client, err := NewClient(WithEndpoint(primary.URL), WithFallbackEndpoints(secondary.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	result, err := client.Generate(context.Background(), models.GenerationRequest{Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Success {
		t.Error("expected reported failure result")
	}
	if result.Message != "no profile found" {
		t.Errorf("expected reported reason, got %q", result.Message)
	}
	if secondaryCalls.Load() != 0 {
		t.Error("expected fallback not consulted for a definitive failure")
	}
}

func TestGenerateAllEndpointsFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(WithEndpoint(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.Generate(context.Background(), models.GenerationRequest{Email: "jane@example.com"}); err == nil {
		t.Error("expected error when every endpoint fails")
	}
}
