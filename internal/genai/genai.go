// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// ResumeBot uses it for one narrow task: extracting a short target-role label
// from a job description to enrich the processing acknowledgment and the
// generation request. The flow treats it as strictly best-effort.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const roleExtractionSystemPrompt = "You extract job titles. Given a job description, reply with only the job title being hired for, in at most five words. Reply with an empty string if no title can be determined."

// MaxRoleLength caps the accepted label; anything longer is treated as the
// model failing to follow instructions and discarded.
const MaxRoleLength = 60

// chatCompleter is the minimal chat-completion surface, for testability.
type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Client wraps the OpenAI chat completion service for job analysis.
type Client struct {
	chat chatCompleter
}

// NewClient initializes a GenAI client, falling back to OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions}, nil
}

// ExtractTargetRole asks the model for the job title a description hires for.
func (c *Client) ExtractTargetRole(ctx context.Context, jobDescription string) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(roleExtractionSystemPrompt),
			openai.UserMessage(jobDescription),
		},
	})
	if err != nil {
		return "", fmt.Errorf("role extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("role extraction returned no choices")
	}

	role := strings.TrimSpace(resp.Choices[0].Message.Content)
	role = strings.Trim(role, `"'`)
	if role == "" || len(role) > MaxRoleLength {
		slog.Debug("GenAI role extraction produced unusable label", "length", len(role))
		return "", nil
	}
	slog.Debug("GenAI role extracted", "role", role)
	return role, nil
}
