package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check for a component
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration_ms"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HealthCheckFunc is a function that performs a health check
type HealthCheckFunc func(context.Context) *HealthCheck

// HealthChecker runs registered checks and caches their results for a short TTL
type HealthChecker struct {
	checks  map[string]HealthCheckFunc
	cache   map[string]*HealthCheck
	mu      sync.Mutex
	ttl     time.Duration
	service string
	version string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]HealthCheckFunc),
		cache:   make(map[string]*HealthCheck),
		ttl:     5 * time.Second,
		service: service,
		version: version,
	}
}

// WithTTL overrides how long check results are reused
func (hc *HealthChecker) WithTTL(ttl time.Duration) *HealthChecker {
	hc.ttl = ttl
	return hc
}

// Register registers a health check
func (hc *HealthChecker) Register(name string, check HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
	delete(hc.cache, name)
}

// Names lists registered checks in sorted order
func (hc *HealthChecker) Names() []string {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check performs all health checks
func (hc *HealthChecker) Check(ctx context.Context) map[string]*HealthCheck {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	results := make(map[string]*HealthCheck)
	now := time.Now()

	for name, checkFunc := range hc.checks {
		if cached, exists := hc.cache[name]; exists && now.Sub(cached.LastChecked) < hc.ttl {
			results[name] = cached
			continue
		}

		result := checkFunc(ctx)
		result.LastChecked = time.Now()

		hc.cache[name] = result
		results[name] = result
	}

	return results
}

// overallStatus folds a set of check results into one status
func overallStatus(checks map[string]*HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

// GetOverallStatus determines the overall health status
func (hc *HealthChecker) GetOverallStatus(ctx context.Context) HealthStatus {
	return overallStatus(hc.Check(ctx))
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus            `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*HealthCheck `json:"checks"`
	Metadata  map[string]interface{}  `json:"metadata,omitempty"`
}

// GetHealthResponse returns a complete health response
func (hc *HealthChecker) GetHealthResponse(ctx context.Context) *HealthResponse {
	checks := hc.Check(ctx)

	return &HealthResponse{
		Status:    overallStatus(checks),
		Timestamp: time.Now(),
		Checks:    checks,
		Metadata: map[string]interface{}{
			"version": hc.version,
			"service": hc.service,
		},
	}
}

// pingCheck builds a check around a ping function. failStatus is reported when the ping errors.
func pingCheck(name, label string, timeout time.Duration, failStatus HealthStatus, ping func(context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheck {
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := ping(ctx)
		duration := time.Since(start)

		if err != nil {
			return &HealthCheck{
				Name:     name,
				Status:   failStatus,
				Message:  fmt.Sprintf("%s unavailable: %v", label, err),
				Duration: duration,
			}
		}

		return &HealthCheck{
			Name:     name,
			Status:   HealthStatusHealthy,
			Message:  fmt.Sprintf("%s available", label),
			Duration: duration,
			Metadata: map[string]interface{}{
				"response_time_ms": duration.Milliseconds(),
			},
		}
	}
}

// WarehouseHealthCheck checks the analytical database that answers questions
func WarehouseHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("warehouse", "Warehouse", 2*time.Second, HealthStatusUnhealthy, ping)
}

// ExampleStoreHealthCheck checks the database holding training examples.
// Losing it only weakens prompts, so failures are reported as degraded.
func ExampleStoreHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("example_store", "Example store", 2*time.Second, HealthStatusDegraded, ping)
}

// RedisHealthCheck creates a health check for Redis connectivity
func RedisHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("redis", "Redis", 2*time.Second, HealthStatusUnhealthy, ping)
}

// LLMHealthCheck creates a health check for the LLM service.
// Cached questions still resolve without it, so it degrades rather than fails.
func LLMHealthCheck(check func(context.Context) error) HealthCheckFunc {
	return pingCheck("llm_service", "LLM service", 5*time.Second, HealthStatusDegraded, check)
}

// CacheHealthCheck reports the question cache size. An empty cache is degraded.
func CacheHealthCheck(size func() int) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheck {
		n := size()
		CacheEntries.Set(float64(n))

		check := &HealthCheck{
			Name:     "query_cache",
			Status:   HealthStatusHealthy,
			Message:  "Query cache loaded",
			Metadata: map[string]interface{}{"entries": n},
		}
		if n == 0 {
			check.Status = HealthStatusDegraded
			check.Message = "Query cache is empty"
		}
		return check
	}
}
