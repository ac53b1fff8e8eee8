package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// recorderStub collects recorded responses.
type recorderStub struct {
	recorded []models.Response
}

func (r *recorderStub) AddResponse(resp models.Response) error {
	r.recorded = append(r.recorded, resp)
	return nil
}

func TestInboundProcessorForwardsAndRecords(t *testing.T) {
	svc, err := NewWABBService(WithWebhookURL("http://localhost:0/unused"))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}
	recorder := &recorderStub{}

	handled := make(chan models.Response, 1)
	processor := NewInboundProcessor(svc, func(ctx context.Context, phone, name, text string) error {
		handled <- models.Response{From: phone, Name: name, Body: text}
		return nil
	}, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor.Start(ctx)

	svc.EmitResponse(models.Response{From: "919876543210", Name: "Jane", Body: "resume", Time: 1})

	select {
	case got := <-handled:
		if got.From != "919876543210" || got.Name != "Jane" || got.Body != "resume" {
			t.Errorf("handler got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
	if len(recorder.recorded) != 1 {
		t.Errorf("expected 1 recorded response, got %d", len(recorder.recorded))
	}
}

func TestInboundProcessorSurvivesHandlerErrors(t *testing.T) {
	svc, err := NewWABBService(WithWebhookURL("http://localhost:0/unused"))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}

	handled := make(chan string, 2)
	processor := NewInboundProcessor(svc, func(ctx context.Context, phone, name, text string) error {
		handled <- text
		if text == "bad" {
			return errors.New("boom")
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor.Start(ctx)

	svc.EmitResponse(models.Response{From: "919876543210", Body: "bad"})
	svc.EmitResponse(models.Response{From: "919876543210", Body: "good"})

	for _, want := range []string{"bad", "good"} {
		select {
		case got := <-handled:
			if got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %q was not processed", want)
		}
	}
}
