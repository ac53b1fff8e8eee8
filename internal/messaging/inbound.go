// Package messaging provides inbound response processing for the resume flow.
package messaging

import (
	"context"
	"log/slog"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// MessageHandler processes one inbound user message.
type MessageHandler func(ctx context.Context, phone, name, text string) error

// ResponseRecorder persists inbound messages for later inspection.
type ResponseRecorder interface {
	AddResponse(r models.Response) error
}

// InboundProcessor consumes a Service's responses channel and forwards each
// message to the flow handler, recording it along the way.
type InboundProcessor struct {
	service  Service
	handler  MessageHandler
	recorder ResponseRecorder
}

// NewInboundProcessor creates a processor feeding the given handler.
func NewInboundProcessor(service Service, handler MessageHandler, recorder ResponseRecorder) *InboundProcessor {
	return &InboundProcessor{service: service, handler: handler, recorder: recorder}
}

// Start begins consuming responses until the context is cancelled or the
// channel closes. Handler errors are logged, never fatal: the next message
// must still be processed.
func (p *InboundProcessor) Start(ctx context.Context) {
	slog.Info("InboundProcessor starting response processing")
	go func() {
		defer slog.Info("InboundProcessor stopped response processing")
		for {
			select {
			case response, ok := <-p.service.Responses():
				if !ok {
					slog.Debug("InboundProcessor responses channel closed")
					return
				}
				p.process(ctx, response)
			case <-ctx.Done():
				slog.Debug("InboundProcessor stopping due to context cancellation")
				return
			}
		}
	}()
}

func (p *InboundProcessor) process(ctx context.Context, response models.Response) {
	if p.recorder != nil {
		if err := p.recorder.AddResponse(response); err != nil {
			slog.Warn("InboundProcessor failed to record response", "error", err, "from", response.From)
		}
	}
	if err := p.handler(ctx, response.From, response.Name, response.Body); err != nil {
		slog.Error("InboundProcessor handler failed", "error", err, "from", response.From)
	}
}
