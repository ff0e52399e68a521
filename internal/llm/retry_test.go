package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		expected bool
	}{
		{
			name:     "rate limit error should be retryable",
			errMsg:   "rate limit exceeded: too many requests",
			expected: true,
		},
		{
			name:     "500 error should be retryable",
			errMsg:   "API error 500: internal server error",
			expected: true,
		},
		{
			name:     "503 error should be retryable",
			errMsg:   "API error 503: service unavailable",
			expected: true,
		},
		{
			name:     "timeout should be retryable",
			errMsg:   "request timeout exceeded",
			expected: true,
		},
		{
			name:     "connection refused should be retryable",
			errMsg:   "connection refused by server",
			expected: true,
		},
		{
			name:     "auth error should not be retryable",
			errMsg:   "invalid API key: authentication failed",
			expected: false,
		},
		{
			name:     "401 error should not be retryable",
			errMsg:   "API error 401: unauthorized",
			expected: false,
		},
		{
			name:     "bad request should not be retryable",
			errMsg:   "bad request: invalid parameters",
			expected: false,
		},
		{
			name:     "400 error should not be retryable",
			errMsg:   "API error 400: bad request",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &testError{msg: tt.errMsg}
			result := isRetryableError(err)
			if result != tt.expected {
				t.Errorf("isRetryableError() = %v, expected %v for error: %s", result, tt.expected, tt.errMsg)
			}
		})
	}

	if isRetryableError(nil) {
		t.Error("isRetryableError(nil) = true, expected false")
	}
}

func TestWithRetry(t *testing.T) {
	fast := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	tests := []struct {
		name          string
		failures      []error
		expectedCalls int
		expectErr     bool
	}{
		{
			name:          "success on first call",
			expectedCalls: 1,
		},
		{
			name:          "retryable errors then success",
			failures:      []error{errors.New("API error 503: busy"), errors.New("rate limit exceeded: slow down")},
			expectedCalls: 3,
		},
		{
			name:          "non-retryable error stops immediately",
			failures:      []error{errors.New("invalid API key: nope")},
			expectedCalls: 1,
			expectErr:     true,
		},
		{
			name: "retry budget exhausted",
			failures: []error{
				errors.New("API error 500: a"),
				errors.New("API error 500: b"),
				errors.New("API error 500: c"),
				errors.New("API error 500: d"),
			},
			expectedCalls: 4,
			expectErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result, err := withRetry(context.Background(), fast, func() (string, error) {
				calls++
				if calls <= len(tt.failures) {
					return "", tt.failures[calls-1]
				}
				return "ok", nil
			})

			if calls != tt.expectedCalls {
				t.Errorf("withRetry() made %d calls, expected %d", calls, tt.expectedCalls)
			}
			if tt.expectErr {
				if err == nil {
					t.Fatal("withRetry() expected error, got nil")
				}
				if err != tt.failures[calls-1] {
					t.Errorf("withRetry() error = %v, expected last failure %v", err, tt.failures[calls-1])
				}
				return
			}
			if err != nil {
				t.Fatalf("withRetry() unexpected error: %v", err)
			}
			if result != "ok" {
				t.Errorf("withRetry() = %q, expected ok", result)
			}
		})
	}
}

func TestWithRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, DefaultRetryConfig, func() (int, error) {
		calls++
		return 0, errors.New("API error 503: busy")
	})
	if err == nil {
		t.Fatal("withRetry() expected error for cancelled context")
	}
	if calls > 1 {
		t.Errorf("withRetry() made %d calls after cancellation, expected at most 1", calls)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	if DefaultRetryConfig.MaxRetries != 3 {
		t.Errorf("DefaultRetryConfig.MaxRetries = %d, expected 3", DefaultRetryConfig.MaxRetries)
	}
	if DefaultRetryConfig.BaseDelay != 100*time.Millisecond {
		t.Errorf("DefaultRetryConfig.BaseDelay = %v, expected 100ms", DefaultRetryConfig.BaseDelay)
	}
	if DefaultRetryConfig.MaxDelay != 5*time.Second {
		t.Errorf("DefaultRetryConfig.MaxDelay = %v, expected 5s", DefaultRetryConfig.MaxDelay)
	}
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
