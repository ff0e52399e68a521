package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// CircuitBreakerConfig defines circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests   uint32        // Max requests allowed in half-open state
	Interval      time.Duration // Window for counting failures
	Timeout       time.Duration // Duration circuit stays open before trying recovery
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig provides sensible defaults
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests: 1,
	Interval:    10 * time.Second, // Count failures over 10 seconds
	Timeout:     30 * time.Second, // Try recovery after 30 seconds
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && (counts.ConsecutiveFailures >= 5 || failureRatio >= 0.6)
	},
}

// CircuitBreakerClient wraps an LLM client with circuit breaker protection
type CircuitBreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient creates a new circuit breaker wrapped client.
// State changes are logged when config carries no OnStateChange of its own.
func NewCircuitBreakerClient(client Client, name string, config CircuitBreakerConfig, logger *observability.Logger) *CircuitBreakerClient {
	onStateChange := config.OnStateChange
	if onStateChange == nil && logger != nil {
		onStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(context.Background(), "Circuit breaker state changed", map[string]interface{}{
				"breaker":  name,
				"provider": client.Provider(),
				"from":     from.String(),
				"to":       to.String(),
			})
		}
	}

	settings := gobreaker.Settings{
		Name:          name,
		MaxRequests:   config.MaxRequests,
		Interval:      config.Interval,
		Timeout:       config.Timeout,
		ReadyToTrip:   config.ReadyToTrip,
		OnStateChange: onStateChange,
	}

	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Complete wraps the client's Complete with circuit breaker protection
func (cb *CircuitBreakerClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.client.Complete(ctx, req)
	})

	if err != nil {
		return nil, fmt.Errorf("circuit breaker: %w", err)
	}

	return result.(*Response), nil
}

// Provider returns the wrapped client's provider
func (cb *CircuitBreakerClient) Provider() string { return cb.client.Provider() }

// Model returns the wrapped client's model
func (cb *CircuitBreakerClient) Model() string { return cb.client.Model() }

// State returns the current state of the circuit breaker
func (cb *CircuitBreakerClient) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the current failure counts
func (cb *CircuitBreakerClient) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
