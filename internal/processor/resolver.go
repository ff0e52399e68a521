// internal/processor/resolver.go
package processor

import (
	"context"
	"time"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
	"github.com/seanankenbruck/insidebi-ai/internal/warehouse"
)

// DefaultMaxAttempts bounds generation attempts per question
const DefaultMaxAttempts = 3

// SQLCache stores SQL that already answered a question
type SQLCache interface {
	Lookup(question string) (sql string, score float64, ok bool)
	Store(question, sql string)
	Len() int
}

// SQLGenerator turns a question, possibly annotated with the previous
// failure, into SQL
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, prompt string) (string, error)
}

// SQLExecutor runs SQL against the dataset
type SQLExecutor interface {
	RunSQL(ctx context.Context, sql string) (*warehouse.Result, error)
}

// Resolution is the SQL that answered a question and its result
type Resolution struct {
	SQL      string
	Result   *warehouse.Result
	CacheHit bool
	Score    float64 // similarity of the cache hit, 0 when generated
	Attempts int     // generator calls made, 0 on a cache hit
}

// Resolver answers questions from the cache or by generating SQL,
// feeding each failure back to the generator
type Resolver struct {
	cache       SQLCache
	generator   SQLGenerator
	executor    SQLExecutor
	safety      *SafetyChecker
	maxAttempts int
	logger      *observability.Logger
}

// NewResolver creates a resolver. maxAttempts <= 0 selects DefaultMaxAttempts.
func NewResolver(cache SQLCache, generator SQLGenerator, executor SQLExecutor, maxAttempts int, logger *observability.Logger) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = observability.NewLogger("resolver")
	}
	return &Resolver{
		cache:       cache,
		generator:   generator,
		executor:    executor,
		safety:      NewSafetyChecker(),
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// WithSafetyChecker replaces the keyword guard
func (r *Resolver) WithSafetyChecker(sc *SafetyChecker) *Resolver {
	r.safety = sc
	return r
}

// CacheSize returns the number of cached questions
func (r *Resolver) CacheSize() int {
	return r.cache.Len()
}

// retryContext restates the original question with the latest failure
func retryContext(question string, err error) string {
	return question + "\n[previous attempt error: " + errors.Reason(err) + "]"
}

// Resolve answers a question. Only an UNSAFE_SQL validation error or a
// GENERATION_EXHAUSTED error is returned; other failures become context for
// the next attempt.
func (r *Resolver) Resolve(ctx context.Context, question string) (*Resolution, error) {
	start := time.Now()

	if sql, score, ok := r.cache.Lookup(question); ok {
		observability.RecordCacheLookup(true)
		r.logger.Info(ctx, "Cache hit", map[string]interface{}{
			"score": score,
			"sql":   sanitizeForLogging(sql),
		})

		result, err := r.executor.RunSQL(ctx, sql)
		if err == nil {
			observability.RecordQueryMetrics(time.Since(start), observability.OutcomeCacheHit, 0)
			return &Resolution{SQL: sql, Result: result, CacheHit: true, Score: score}, nil
		}

		// Stale entry: regenerate from the bare question
		observability.CacheStaleHits.Inc()
		r.logger.Warn(ctx, "Cached SQL failed, falling back to generation", map[string]interface{}{
			"error": errors.Reason(err),
			"sql":   sanitizeForLogging(sql),
		})
	} else {
		observability.RecordCacheLookup(false)
	}

	prompt := question
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sql, err := r.generator.GenerateSQL(ctx, prompt)
		if err != nil {
			lastErr = err
			prompt = retryContext(question, err)
			r.logger.Warn(ctx, "SQL generation failed", map[string]interface{}{
				"attempt": attempt,
				"error":   errors.Reason(err),
			})
			continue
		}

		if err := r.safety.ValidateSQL(sql); err != nil {
			observability.RecordQueryMetrics(time.Since(start), observability.OutcomeValidationError, attempt)
			r.logger.Warn(ctx, "Rejected unsafe SQL", map[string]interface{}{
				"attempt": attempt,
				"sql":     sanitizeForLogging(sql),
			})
			return nil, err
		}

		result, err := r.executor.RunSQL(ctx, sql)
		if err != nil {
			lastErr = err
			prompt = retryContext(question, err)
			r.logger.Warn(ctx, "Generated SQL failed to execute", map[string]interface{}{
				"attempt": attempt,
				"error":   errors.Reason(err),
				"sql":     sanitizeForLogging(sql),
			})
			continue
		}

		r.cache.Store(question, sql)
		observability.CacheEntries.Set(float64(r.cache.Len()))
		observability.RecordQueryMetrics(time.Since(start), observability.OutcomeStored, attempt)
		r.logger.Info(ctx, "Stored generated SQL", map[string]interface{}{
			"attempt": attempt,
			"sql":     sanitizeForLogging(sql),
		})
		return &Resolution{SQL: sql, Result: result, Attempts: attempt}, nil
	}

	observability.RecordQueryMetrics(time.Since(start), observability.OutcomeExhausted, r.maxAttempts)
	r.logger.Error(ctx, "Query generation exhausted", lastErr, map[string]interface{}{
		"attempts": r.maxAttempts,
	})
	return nil, errors.NewGenerationExhaustedError(lastErr, r.maxAttempts)
}
