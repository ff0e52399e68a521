package sqlgen

import (
	"context"
	"fmt"
	"time"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/llm"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
	"github.com/seanankenbruck/insidebi-ai/internal/semantic"
)

// Generator turns a question into SQL with an LLM, priming it with the most
// similar trained examples
type Generator struct {
	retriever semantic.Retriever
	client    llm.Client
	system    string
	nResults  int
	logger    *observability.Logger
}

// Config configures a Generator
type Config struct {
	Dialect  string // SQL dialect named in the system prompt, default SQLite
	DDL      string // compact schema; BuiltinDDL when empty
	NResults int    // few-shot examples per request, default 3
}

// NewGenerator creates a generator. retriever may be nil, in which case no
// examples are sent.
func NewGenerator(retriever semantic.Retriever, client llm.Client, config Config, logger *observability.Logger) *Generator {
	if config.NResults <= 0 {
		config.NResults = semantic.DefaultResults
	}
	if logger == nil {
		logger = observability.NewLogger("sqlgen")
	}
	return &Generator{
		retriever: retriever,
		client:    client,
		system:    SystemPrompt(config.Dialect, config.DDL),
		nResults:  config.NResults,
		logger:    logger,
	}
}

// SystemPrompt returns the fixed prompt sent with every request
func (g *Generator) SystemPrompt() string { return g.system }

// BuildRequest assembles the system prompt, few-shot turns and the question
func (g *Generator) BuildRequest(ctx context.Context, prompt string) *llm.Request {
	req := &llm.Request{System: g.system}

	for _, ex := range g.examples(ctx, prompt) {
		if ex.Question == "" || ex.SQL == "" {
			continue
		}
		req.Messages = append(req.Messages,
			llm.Message{Role: llm.RoleUser, Content: ex.Question},
			llm.Message{Role: llm.RoleAssistant, Content: ex.SQL},
		)
	}

	req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return req
}

// examples never fails; a broken retriever just means no examples
func (g *Generator) examples(ctx context.Context, prompt string) []semantic.Example {
	if g.retriever == nil {
		return nil
	}
	examples, err := g.retriever.Similar(ctx, prompt, g.nResults)
	if err != nil {
		g.logger.Warn(ctx, "Example retrieval failed, continuing without examples", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if len(examples) > g.nResults {
		examples = examples[:g.nResults]
	}
	return examples
}

// GenerateSQL asks the model for SQL answering prompt
func (g *Generator) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	req := g.BuildRequest(ctx, prompt)

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return "", errors.NewSQLGenerationError(err)
	}

	sql := CleanSQL(resp.Text)
	if sql == "" {
		return "", errors.NewSQLGenerationError(fmt.Errorf("model returned no SQL"))
	}

	g.logger.Debug(ctx, "SQL generated", map[string]interface{}{
		"provider":      g.client.Provider(),
		"examples":      (len(req.Messages) - 1) / 2,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
		"duration_ms":   time.Since(start).Milliseconds(),
	})

	return sql, nil
}
