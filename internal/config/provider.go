package config

import (
	"context"
	"fmt"
)

// SecretProvider is one place configuration values can come from. An unset
// key yields an empty value and no error.
type SecretProvider interface {
	GetSecret(ctx context.Context, key string) (string, error)
	Name() string
	IsAvailable(ctx context.Context) bool
}

// ChainProvider asks its providers in order and returns the first non-empty value
type ChainProvider struct {
	providers []SecretProvider
}

// NewChainProvider creates a chain; earlier providers shadow later ones
func NewChainProvider(providers ...SecretProvider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// GetSecret returns the first non-empty value for key
func (c *ChainProvider) GetSecret(ctx context.Context, key string) (string, error) {
	value, _, err := c.Lookup(ctx, key)
	return value, err
}

// Lookup is GetSecret that also names the provider the value came from.
// Unavailable providers are skipped; a failing provider does not stop the
// search, but its error is returned if no later provider has the key.
func (c *ChainProvider) Lookup(ctx context.Context, key string) (value, source string, err error) {
	var lastErr error
	for _, p := range c.providers {
		if !p.IsAvailable(ctx) {
			continue
		}
		v, err := p.GetSecret(ctx, key)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			continue
		}
		if v != "" {
			return v, p.Name(), nil
		}
	}

	if lastErr != nil {
		return "", "", fmt.Errorf("secret %s not found: %w", key, lastErr)
	}
	return "", "", fmt.Errorf("secret %s is not set", key)
}

// Name returns the provider name
func (c *ChainProvider) Name() string {
	return "chain"
}

// IsAvailable reports whether any provider in the chain can be asked
func (c *ChainProvider) IsAvailable(ctx context.Context) bool {
	for _, p := range c.providers {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}
