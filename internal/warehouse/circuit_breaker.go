package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// CircuitBreakerConfig defines circuit breaker configuration for the warehouse
type CircuitBreakerConfig struct {
	MaxRequests   uint32        // Max requests allowed in half-open state
	Interval      time.Duration // Window for counting failures
	Timeout       time.Duration // Duration circuit stays open before trying recovery
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig provides sensible defaults for the warehouse
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests: 1,
	Interval:    10 * time.Second,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	},
}

// Executor is the warehouse surface protected by the breaker
type Executor interface {
	RunSQL(ctx context.Context, query string) (*Result, error)
	Ping(ctx context.Context) error
}

// CircuitBreakerClient wraps an Executor with circuit breaker protection.
// Only connectivity failures count against the breaker; a bad generated
// query is the caller's problem, not the warehouse's.
type CircuitBreakerClient struct {
	client  Executor
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient creates a new circuit breaker wrapped client
func NewCircuitBreakerClient(client Executor, name string, config CircuitBreakerConfig, logger *observability.Logger) *CircuitBreakerClient {
	onStateChange := config.OnStateChange
	if onStateChange == nil && logger != nil {
		onStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(context.Background(), "Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
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
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsCode(err, errors.ErrCodeDatabaseConnection)
		},
	}

	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// RunSQL wraps the client's RunSQL with circuit breaker protection
func (cb *CircuitBreakerClient) RunSQL(ctx context.Context, query string) (*Result, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.client.RunSQL(ctx, query)
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.NewDatabaseConnectionError(fmt.Errorf("circuit breaker: %w", err))
		}
		return nil, err
	}

	return result.(*Result), nil
}

// Ping wraps the client's Ping with circuit breaker protection
func (cb *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := cb.client.Ping(ctx); err != nil {
			return nil, errors.NewDatabaseConnectionError(err)
		}
		return nil, nil
	})
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreakerClient) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the current failure counts
func (cb *CircuitBreakerClient) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
