// Package api provides HTTP handlers and the main server logic for ResumeBot.
//
// It exposes the inbound message webhook that drives the resume conversation
// flow, plus health and bookkeeping endpoints. Run wires every module
// together into a running service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CampusPe/ResumeBot/internal/flow"
	"github.com/CampusPe/ResumeBot/internal/genai"
	"github.com/CampusPe/ResumeBot/internal/messaging"
	"github.com/CampusPe/ResumeBot/internal/profile"
	"github.com/CampusPe/ResumeBot/internal/resume"
	"github.com/CampusPe/ResumeBot/internal/scheduler"
	"github.com/CampusPe/ResumeBot/internal/store"
	"github.com/CampusPe/ResumeBot/internal/twiliowhatsapp"
	"github.com/CampusPe/ResumeBot/internal/whatsapp"
)

// Server configuration defaults.
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Messaging channel selectors.
const (
	ChannelWABB     = "wabb"
	ChannelTwilio   = "twilio"
	ChannelWhatsApp = "whatsmeow"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	Channel        string
	WABBWebhookURL string
	GracePeriod    time.Duration
	IdleTimeout    time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithChannel selects the messaging transport (wabb, twilio, whatsmeow).
func WithChannel(channel string) Option {
	return func(o *Opts) { o.Channel = channel }
}

// WithWABBWebhookURL sets the outbound WABB relay catch URL.
func WithWABBWebhookURL(url string) Option {
	return func(o *Opts) { o.WABBWebhookURL = url }
}

// WithGracePeriod overrides the post-completion conversation retention window.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Opts) { o.GracePeriod = d }
}

// WithIdleTimeout overrides the reaper's inactivity threshold.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.IdleTimeout = d }
}

// Server holds the HTTP surface and its collaborators.
type Server struct {
	addr       string
	msgService messaging.Service
	flowEngine *flow.ResumeFlow
	st         store.Store
	timer      *flow.CleanupTimer
	httpServer *http.Server
}

// NewServer creates an API server over the given collaborators.
func NewServer(msgService messaging.Service, flowEngine *flow.ResumeFlow, st store.Store, addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		addr:       addr,
		msgService: msgService,
		flowEngine: flowEngine,
		st:         st,
	}
}

// SetTimer attaches the cleanup timer so the timers endpoint can report it.
func (s *Server) SetTimer(t *flow.CleanupTimer) {
	s.timer = t
}

// Routes builds the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/receipts", s.receiptsHandler)
	mux.HandleFunc("/responses", s.responsesHandler)
	mux.HandleFunc("/send", s.sendHandler)
	mux.HandleFunc("/timers", s.timersHandler)
	if twilioSvc, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilioSvc.WebhookHandler)
	}
	return mux
}

// Start begins serving; it blocks until the listener fails or is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Routes()}
	slog.Info("ResumeBot API listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Run assembles every module from options and serves until SIGINT/SIGTERM.
func Run(storeOpts []store.Option, resumeOpts []resume.Option, profileOpts []profile.Option, genaiOpts []genai.Option, waOpts []whatsapp.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Channel == "" {
		cfg.Channel = ChannelWABB
	}

	st, err := store.NewFromOptions(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	msgService, err := buildMessagingService(cfg, waOpts)
	if err != nil {
		return err
	}

	generator, err := resume.NewClient(resumeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize resume client: %w", err)
	}

	cleanupTimer := flow.NewCleanupTimer()
	flowOpts := []flow.FlowOption{flow.WithTimer(cleanupTimer)}
	if cfg.GracePeriod > 0 {
		flowOpts = append(flowOpts, flow.WithGracePeriod(cfg.GracePeriod))
	}
	if profiles, err := profile.NewClient(profileOpts...); err != nil {
		slog.Info("Profile lookup disabled", "reason", err)
	} else {
		flowOpts = append(flowOpts, flow.WithProfileLookup(profiles))
	}
	if analyzer, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Info("Job-description analysis disabled", "reason", err)
	} else {
		flowOpts = append(flowOpts, flow.WithJobAnalyzer(analyzer))
	}

	manager := flow.NewConversationManager(st)
	flowEngine := flow.NewResumeFlow(manager, msgService, generator, flowOpts...)
	defer flowEngine.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer func() {
		if err := msgService.Stop(); err != nil {
			slog.Error("Failed to stop messaging service", "error", err)
		}
	}()

	processor := messaging.NewInboundProcessor(msgService, flowEngine.HandleMessage, st)
	processor.Start(ctx)
	go recordReceipts(ctx, msgService, st)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	reaper := flow.NewReaper(st, cleanupTimer, cfg.IdleTimeout)
	if err := reaper.Start(sched); err != nil {
		return fmt.Errorf("failed to schedule idle reaper: %w", err)
	}

	server := NewServer(msgService, flowEngine, st, cfg.Addr)
	server.SetTimer(cleanupTimer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutting down on signal", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// buildMessagingService constructs the outbound transport for the configured channel.
func buildMessagingService(cfg Opts, waOpts []whatsapp.Option) (messaging.Service, error) {
	switch cfg.Channel {
	case ChannelWABB:
		svc, err := messaging.NewWABBService(messaging.WithWebhookURL(cfg.WABBWebhookURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize WABB service: %w", err)
		}
		return svc, nil
	case ChannelTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case ChannelWhatsApp:
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown messaging channel %q", cfg.Channel)
	}
}

// recordReceipts drains the messaging service's receipt channel into the store
// until the context is cancelled or the channel closes.
func recordReceipts(ctx context.Context, svc messaging.Service, st store.Store) {
	for {
		select {
		case receipt, ok := <-svc.Receipts():
			if !ok {
				return
			}
			if err := st.AddReceipt(receipt); err != nil {
				slog.Warn("Failed to record receipt", "error", err, "to", receipt.To)
			}
		case <-ctx.Done():
			return
		}
	}
}
