package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// #region client-interface

// Client generates one coaching message per decision.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// MessageService abstracts the Anthropic messages API so the client can be
// tested without network access.
type MessageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type realMessageService struct {
	messages *anthropic.MessageService
}

func (r *realMessageService) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return r.messages.New(ctx, params)
}

// #endregion client-interface

// #region config

// Config holds model parameters for the Anthropic client.
type Config struct {
	Model      string
	MaxTokens  int64
	MaxRetries int // bounded reformulation retries on malformed output
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:      "claude-sonnet-4-5",
		MaxTokens:  512,
		MaxRetries: 2,
	}
}

// #endregion config

// #region constructor

// AnthropicClient renders prompts and validates structured output against
// the expected schema.
type AnthropicClient struct {
	service MessageService
	config  Config
}

// NewAnthropicClient connects to the Anthropic API.
func NewAnthropicClient(apiKey string, config Config) *AnthropicClient {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		service: &realMessageService{messages: &client.Messages},
		config:  config,
	}
}

// NewAnthropicClientWithService creates a client with an injected message
// service. Used for testing without a real API connection.
func NewAnthropicClientWithService(svc MessageService, config Config) *AnthropicClient {
	return &AnthropicClient{service: svc, config: config}
}

// #endregion constructor

// #region complete

const systemPrompt = `You are a personal-development coach. Respond with a single JSON object:
{"message": "<the coaching message, 1-3 sentences>", "tone": "<one word>"}
No other text.`

// Complete generates and validates one coaching message. Malformed output
// triggers bounded reformulation retries; exhaustion is a fatal error
// carrying a truncated copy of the last raw output. Transport failures are
// classified retryable vs fatal; no fallback message is ever substituted.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	prompt := renderPrompt(req)

	var lastRaw string
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		msg := prompt
		if attempt > 0 {
			msg = prompt + "\n\nYour previous reply was not valid JSON matching the schema. Reply with only the JSON object."
		}

		resp, err := c.service.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.config.Model),
			MaxTokens: c.config.MaxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg)),
			},
		})
		if err != nil {
			return Response{}, classify(err)
		}

		raw := textContent(resp)
		lastRaw = raw

		parsed, err := parseResponse(raw)
		if err == nil {
			return parsed, nil
		}
	}

	return Response{}, &Error{
		Class:     Fatal,
		RawOutput: truncate(lastRaw, 500),
		Err:       ErrSchemaInvalid,
	}
}

func renderPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Skill: %s\nIntervention: %s\n\n%s", req.Skill, req.Action, req.Summary)
	if req.CallerContext != "" {
		fmt.Fprintf(&b, "\n\n## Additional context\n%s", req.CallerContext)
	}
	return b.String()
}

// #endregion complete

// #region parsing

func textContent(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// parseResponse extracts and validates the expected JSON object.
func parseResponse(raw string) (Response, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return Response{}, fmt.Errorf("no JSON object in output")
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal output: %w", err)
	}
	if strings.TrimSpace(resp.Message) == "" {
		return Response{}, fmt.Errorf("empty message field")
	}
	if len(resp.Message) > 1000 {
		return Response{}, fmt.Errorf("message exceeds length cap")
	}
	return resp, nil
}

// #endregion parsing

// #region classify

// classify maps transport errors onto retryable vs fatal. Rate limits,
// overload and server errors are retryable; everything else is fatal.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return &Error{Class: Retryable, Hint: "rate limited, retry with backoff", Err: err}
		case apiErr.StatusCode == 529:
			return &Error{Class: Retryable, Hint: "service overloaded, retry later", Err: err}
		case apiErr.StatusCode >= 500:
			return &Error{Class: Retryable, Hint: "server error, retry later", Err: err}
		}
		return &Error{Class: Fatal, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: Retryable, Hint: "timeout, retry later", Err: err}
	}
	return &Error{Class: Fatal, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// #endregion classify
