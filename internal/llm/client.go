package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Supported providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderClaude = "claude"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is a chat completion backend
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Provider() string
	Model() string
}

// Message is one conversational turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request: a system prompt followed by turns
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Response is the text a backend produced and what it cost
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Config holds configuration for LLM clients
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	Retry       RetryConfig
}

type providerDefaults struct {
	baseURL string
	model   string
	needKey bool
}

var defaults = map[string]providerDefaults{
	ProviderOllama: {baseURL: "http://localhost:11434/v1", model: "llama3.1:8b"},
	ProviderOpenAI: {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", needKey: true},
	ProviderGroq:   {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.1-8b-instant", needKey: true},
	ProviderClaude: {model: "claude-3-5-haiku-20241022", needKey: true},
}

// WithDefaults fills in the provider's base URL, model and limits
func (c Config) WithDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if d, ok := defaults[c.Provider]; ok {
		if c.BaseURL == "" {
			c.BaseURL = d.baseURL
		}
		if c.Model == "" {
			c.Model = d.model
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1000
	}
	if c.Retry.MaxRetries == 0 && c.Retry.BaseDelay == 0 {
		c.Retry = DefaultRetryConfig
	}
	return c
}

// NewClient builds the client for the configured provider
func NewClient(cfg Config) (Client, error) {
	cfg = cfg.WithDefaults()

	d, ok := defaults[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider %q (expected ollama, openai, groq or claude)", cfg.Provider)
	}
	if d.needKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for provider %s", cfg.Provider)
	}

	if cfg.Provider == ProviderClaude {
		return NewClaudeClient(cfg)
	}
	return NewOpenAIClient(cfg)
}
