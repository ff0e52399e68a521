// internal/auth/ratelimit.go
package auth

import (
	"sync"
	"time"
)

// clientWindow tracks requests for a single client
type clientWindow struct {
	requests []time.Time
	lastSeen time.Time
	mutex    sync.Mutex
}

// RateLimiter provides in-memory rate limiting with a sliding window
type RateLimiter struct {
	window  time.Duration
	clients map[string]*clientWindow
	mutex   sync.Mutex
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
func NewRateLimiter(window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		window:  window,
		clients: make(map[string]*clientWindow),
		stop:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow records a request for clientID and reports whether it fits in limit
func (rl *RateLimiter) Allow(clientID string, limit int) bool {
	rl.mutex.Lock()
	client, exists := rl.clients[clientID]
	if !exists {
		client = &clientWindow{}
		rl.clients[clientID] = client
	}
	rl.mutex.Unlock()

	client.mutex.Lock()
	defer client.mutex.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	valid := client.requests[:0]
	for _, req := range client.requests {
		if req.After(windowStart) {
			valid = append(valid, req)
		}
	}
	client.requests = valid
	client.lastSeen = now

	if len(client.requests) >= limit {
		return false
	}
	client.requests = append(client.requests, now)
	return true
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes clients idle for five windows
func (rl *RateLimiter) cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-5 * rl.window)
	for clientID, client := range rl.clients {
		client.mutex.Lock()
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, clientID)
		}
		client.mutex.Unlock()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// GetStats returns rate limiting statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	clientStats := make([]map[string]interface{}, 0, len(rl.clients))
	for clientID, client := range rl.clients {
		client.mutex.Lock()
		clientStats = append(clientStats, map[string]interface{}{
			"client_id":     clientID,
			"request_count": len(client.requests),
			"last_request":  client.lastSeen,
		})
		client.mutex.Unlock()
	}

	return map[string]interface{}{
		"total_clients": len(rl.clients),
		"window":        rl.window.String(),
		"clients":       clientStats,
	}
}
