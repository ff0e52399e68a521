package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// Ollama, OpenAI and Groq differ only in base URL, model and key.
type OpenAIClient struct {
	provider    string
	model       string
	maxTokens   int
	temperature float32
	retry       RetryConfig
	client      *openai.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible provider
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	cfg = cfg.WithDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for provider %s", cfg.Provider)
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	// A zero temperature is dropped from the request body by the SDK.
	temperature := float32(cfg.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	return &OpenAIClient{
		provider:    cfg.Provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		retry:       cfg.Retry,
		client:      openai.NewClientWithConfig(conf),
	}, nil
}

// Provider returns the provider name
func (c *OpenAIClient) Provider() string { return c.provider }

// Model returns the model name
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the conversation and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	}

	response, err := withRetry(ctx, c.retry, func() (openai.ChatCompletionResponse, error) {
		resp, err := c.client.CreateChatCompletion(ctx, request)
		return resp, classifyAPIError(err)
	})
	if err != nil {
		observability.RecordLLMMetrics(c.provider, time.Since(start), 0, 0, err)
		return nil, fmt.Errorf("failed to send request to %s: %w", c.provider, err)
	}

	if len(response.Choices) == 0 {
		err := fmt.Errorf("%s returned no choices", c.provider)
		observability.RecordLLMMetrics(c.provider, time.Since(start), response.Usage.PromptTokens, response.Usage.CompletionTokens, err)
		return nil, err
	}

	observability.RecordLLMMetrics(c.provider, time.Since(start), response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	return &Response{
		Text:         response.Choices[0].Message.Content,
		Model:        response.Model,
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
	}, nil
}

// classifyAPIError rewrites SDK status errors into messages isRetryableError understands.
// Transport errors pass through unchanged.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode))
	}
	return err
}

func statusError(statusCode int, message string) error {
	message = strings.TrimSpace(message)
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid API key: %s", message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limit exceeded: %s", message)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", message)
	default:
		return fmt.Errorf("API error %d: %s", statusCode, message)
	}
}
