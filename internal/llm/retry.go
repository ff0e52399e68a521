package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig defines retry behavior for provider calls
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
}

// DefaultRetryConfig provides sensible defaults for retry behavior
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

// policy builds an exponential backoff with jitter, bounded by MaxRetries and ctx
func (rc RetryConfig) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = rc.BaseDelay
	exp.MaxInterval = rc.MaxDelay
	exp.MaxElapsedTime = 0

	retries := rc.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// withRetry runs op until it succeeds, fails with a non-retryable error, or
// the retry budget runs out
func withRetry[T any](ctx context.Context, rc RetryConfig, op func() (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		result, err := op()
		if err != nil && !isRetryableError(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, rc.policy(ctx))
}

// isRetryableError determines if an error should be retried
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()

	// Retry rate limit errors (429)
	if strings.Contains(errMsg, "rate limit exceeded") {
		return true
	}

	// Retry server errors (500, 502, 503, 504)
	if strings.Contains(errMsg, "internal error") ||
		strings.Contains(errMsg, "API error 500") ||
		strings.Contains(errMsg, "API error 502") ||
		strings.Contains(errMsg, "API error 503") ||
		strings.Contains(errMsg, "API error 504") {
		return true
	}

	// Retry timeout errors
	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") {
		return true
	}

	// Retry connection errors
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "EOF") {
		return true
	}

	// Auth errors, bad requests and anything unknown are final
	return false
}
