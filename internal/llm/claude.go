package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// ClaudeClient implements the Client interface using Anthropic's Messages API
type ClaudeClient struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// NewClaudeClient creates a new Claude client
func NewClaudeClient(cfg Config) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	cfg = cfg.WithDefaults()

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.Retry.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &ClaudeClient{
		client:      anthropic.NewClient(opts...),
		model:       anthropic.Model(cfg.Model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

// Provider returns the provider name
func (c *ClaudeClient) Provider() string { return ProviderClaude }

// Model returns the model name
func (c *ClaudeClient) Model() string { return string(c.model) }

// Complete sends the conversation to Claude and returns the first text block
func (c *ClaudeClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(c.temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		observability.RecordLLMMetrics(ProviderClaude, time.Since(start), 0, 0, err)
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	inputTokens := int(msg.Usage.InputTokens)
	outputTokens := int(msg.Usage.OutputTokens)

	for _, block := range msg.Content {
		if block.Type == "text" {
			observability.RecordLLMMetrics(ProviderClaude, time.Since(start), inputTokens, outputTokens, nil)
			return &Response{
				Text:         block.Text,
				Model:        string(msg.Model),
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}, nil
		}
	}

	err = fmt.Errorf("no text content in response")
	observability.RecordLLMMetrics(ProviderClaude, time.Since(start), inputTokens, outputTokens, err)
	return nil, err
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
