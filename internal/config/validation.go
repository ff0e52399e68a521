package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation error(s):\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate performs comprehensive validation on the configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateWarehouse()...)
	errors = append(errors, c.validateExamples()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateLLM()...)
	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateFeedback()...)
	errors = append(errors, c.validateAuth()...)
	errors = append(errors, c.validateServer()...)

	if errors.HasErrors() {
		return errors
	}

	return nil
}

func (c *Config) validateWarehouse() []ValidationError {
	var errors []ValidationError

	if c.Warehouse.Driver != "sqlite" && c.Warehouse.Driver != "postgres" {
		errors = append(errors, ValidationError{
			Field:   "Warehouse.Driver",
			Message: fmt.Sprintf("invalid driver: %s (must be 'sqlite' or 'postgres')", c.Warehouse.Driver),
		})
	}

	if c.Warehouse.DSN == "" {
		errors = append(errors, ValidationError{
			Field:   "Warehouse.DSN",
			Message: "warehouse DSN is required",
		})
	}

	if c.Warehouse.QueryTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Warehouse.QueryTimeout",
			Message: "query timeout must be positive",
		})
	}

	if c.Warehouse.MaxRows <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Warehouse.MaxRows",
			Message: "max rows must be positive",
		})
	}

	return errors
}

func (c *Config) validateExamples() []ValidationError {
	var errors []ValidationError

	switch c.Examples.Store {
	case "memory":
	case "postgres":
		if c.Examples.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "Examples.Host",
				Message: "database host is required for the postgres example store",
			})
		}
		if c.Examples.Database == "" {
			errors = append(errors, ValidationError{
				Field:   "Examples.Database",
				Message: "database name is required for the postgres example store",
			})
		}
		if c.Examples.Username == "" {
			errors = append(errors, ValidationError{
				Field:   "Examples.Username",
				Message: "database username is required for the postgres example store",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "Examples.Store",
			Message: fmt.Sprintf("invalid example store: %s (must be 'memory' or 'postgres')", c.Examples.Store),
		})
	}

	if c.Examples.NResults <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Examples.NResults",
			Message: "example results must be positive",
		})
	}

	return errors
}

func (c *Config) validateRedis() []ValidationError {
	var errors []ValidationError

	if c.Feedback.Backend == "redis" && c.Redis.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "Redis.Addr",
			Message: "redis address is required for the redis feedback backend",
		})
	}

	return errors
}

func (c *Config) validateLLM() []ValidationError {
	var errors []ValidationError

	switch c.LLM.Provider {
	case "ollama":
	case "openai", "groq", "claude":
		if c.LLM.APIKey() == "" {
			errors = append(errors, ValidationError{
				Field:   "LLM.APIKey",
				Message: fmt.Sprintf("API key is required for provider %s", c.LLM.Provider),
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "LLM.Provider",
			Message: fmt.Sprintf("invalid provider: %s (must be 'ollama', 'openai', 'groq', or 'claude')", c.LLM.Provider),
		})
	}

	if c.LLM.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "LLM.Timeout",
			Message: "LLM timeout must be positive",
		})
	}

	if c.LLM.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "LLM.MaxTokens",
			Message: "max tokens must be positive",
		})
	}

	return errors
}

func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	if c.Cache.Threshold <= 0 || c.Cache.Threshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "Cache.Threshold",
			Message: fmt.Sprintf("cache threshold must be in (0, 1], got %g", c.Cache.Threshold),
		})
	}

	if c.Resolver.MaxAttempts <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Resolver.MaxAttempts",
			Message: "max attempts must be positive",
		})
	}

	return errors
}

func (c *Config) validateFeedback() []ValidationError {
	var errors []ValidationError

	switch c.Feedback.Backend {
	case "file":
		if c.Feedback.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "Feedback.Path",
				Message: "feedback path is required for the file backend",
			})
		}
	case "redis":
	default:
		errors = append(errors, ValidationError{
			Field:   "Feedback.Backend",
			Message: fmt.Sprintf("invalid feedback backend: %s (must be 'file' or 'redis')", c.Feedback.Backend),
		})
	}

	return errors
}

func (c *Config) validateAuth() []ValidationError {
	var errors []ValidationError

	if c.Auth.JWTSecret == "" {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret is required",
		})
	}

	if c.Auth.JWTExpiry <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTExpiry",
			Message: "JWT expiry must be positive",
		})
	}

	if c.Auth.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.RateLimit",
			Message: "rate limit must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port == "" {
		errors = append(errors, ValidationError{
			Field:   "Server.Port",
			Message: "server port is required",
		})
	}

	validModes := []string{"debug", "release", "test"}
	isValid := false
	for _, mode := range validModes {
		if c.Server.GinMode == mode {
			isValid = true
			break
		}
	}
	if !isValid {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: fmt.Sprintf("invalid gin mode: %s (must be 'debug', 'release', or 'test')", c.Server.GinMode),
		})
	}

	return errors
}

// ValidateProduction performs additional validation for production environments
// It checks for insecure default values that should not be used in production
func (c *Config) ValidateProduction() error {
	var errors ValidationErrors

	if c.Examples.Store == "postgres" && (c.Examples.Password == "" || c.Examples.Password == "changeme") {
		errors = append(errors, ValidationError{
			Field:   "Examples.Password",
			Message: "production deployment must not use default or empty database password",
		})
	}

	if c.Feedback.Backend == "redis" && (c.Redis.Password == "" || c.Redis.Password == "changeme") {
		errors = append(errors, ValidationError{
			Field:   "Redis.Password",
			Message: "production deployment must not use default or empty Redis password",
		})
	}

	insecureJWTSecrets := []string{
		"",
		"your-secret-key-change-in-production",
		"change-this-in-production",
		"secret",
		"jwt-secret",
	}
	for _, insecure := range insecureJWTSecrets {
		if c.Auth.JWTSecret == insecure {
			errors = append(errors, ValidationError{
				Field:   "Auth.JWTSecret",
				Message: "production deployment must not use default or insecure JWT secret",
			})
			break
		}
	}

	if len(c.Auth.JWTSecret) < 32 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret should be at least 32 characters for production use",
		})
	}

	if key := c.LLM.APIKey(); key == "your-api-key-here" || (c.LLM.Provider != "ollama" && key == "") {
		errors = append(errors, ValidationError{
			Field:   "LLM.APIKey",
			Message: "production deployment requires a valid LLM API key",
		})
	}

	if c.Server.GinMode != "release" {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: "production deployment should use 'release' mode",
		})
	}

	if c.Auth.AllowAnonymous {
		errors = append(errors, ValidationError{
			Field:   "Auth.AllowAnonymous",
			Message: "production deployment should not allow anonymous access",
		})
	}

	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			errors = append(errors, ValidationError{
				Field:   "Server.AllowedOrigins",
				Message: "production deployment should not allow every origin",
			})
			break
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// IsProduction determines if the current environment is production
// based on the GinMode setting
func (c *Config) IsProduction() bool {
	return c.Server.GinMode == "release"
}

// ValidateWithContext validates configuration and runs production checks if appropriate
func (c *Config) ValidateWithContext() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.IsProduction() {
		if err := c.ValidateProduction(); err != nil {
			return fmt.Errorf("production validation failed: %w", err)
		}
	}

	return nil
}
