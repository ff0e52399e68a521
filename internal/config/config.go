package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Warehouse holding the dataset questions are answered against
	Warehouse WarehouseConfig

	// Few-shot example store
	Examples ExamplesConfig

	// Redis configuration
	Redis RedisConfig

	// LLM provider configuration
	LLM LLMConfig

	// Golden SQL cache
	Cache CacheConfig

	// Generate/execute/repair loop
	Resolver ResolverConfig

	// Answer feedback persistence
	Feedback FeedbackConfig

	// Authentication configuration
	Auth AuthConfig

	// Server configuration
	Server ServerConfig
}

// WarehouseConfig holds the dataset connection
type WarehouseConfig struct {
	Driver       string // "sqlite", "postgres"
	DSN          string
	QueryTimeout time.Duration
	MaxRows      int
	AutoMigrate  bool
}

// ExamplesConfig holds few-shot example storage
type ExamplesConfig struct {
	Store    string // "memory", "postgres"
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
	NResults int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LLMConfig holds the provider selection and its credentials
type LLMConfig struct {
	Provider     string // "ollama", "openai", "groq", "claude"
	Model        string
	BaseURL      string
	OpenAIAPIKey string
	GroqAPIKey   string
	ClaudeAPIKey string
	Timeout      time.Duration
	MaxTokens    int
}

// CacheConfig holds the golden SQL cache settings
type CacheConfig struct {
	GoldenPath string
	Threshold  float64
}

// ResolverConfig bounds generation attempts per question
type ResolverConfig struct {
	MaxAttempts int
}

// FeedbackConfig selects where answer ratings are kept
type FeedbackConfig struct {
	Backend  string // "file", "redis"
	Path     string
	RedisKey string
}

// AuthConfig holds authentication and authorization configuration
type AuthConfig struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	RateLimit      int
	AllowAnonymous bool
	AdminPassword  string
	APIKeys        []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
}

// APIKey returns the key for the configured provider
func (c LLMConfig) APIKey() string {
	switch strings.ToLower(c.Provider) {
	case "openai":
		return c.OpenAIAPIKey
	case "groq":
		return c.GroqAPIKey
	case "claude":
		return c.ClaudeAPIKey
	default:
		return ""
	}
}

// Loader handles loading configuration from various sources
type Loader struct {
	provider SecretProvider
}

// NewLoader creates a new configuration loader with the given secret provider
func NewLoader(provider SecretProvider) *Loader {
	return &Loader{
		provider: provider,
	}
}

// NewDefaultLoader creates a loader with the default provider chain:
// 1. Kubernetes secrets (if available)
// 2. File-based secrets (if available)
// 3. A .env file in the working directory (if present)
// 4. Environment variables (fallback)
func NewDefaultLoader() *Loader {
	providers := []SecretProvider{
		NewK8sProvider("", ""),
		NewFileProvider("/var/secrets"),
		NewDotenvProvider(".env"),
		NewEnvProvider(),
	}

	return &Loader{
		provider: NewChainProvider(providers...),
	}
}

// Load loads the complete configuration
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	// DB_PATH is the sqlite file; WAREHOUSE_DSN wins when set
	driver := strings.ToLower(l.getString(ctx, "WAREHOUSE_DRIVER", "sqlite"))
	cfg.Warehouse = WarehouseConfig{
		Driver:       driver,
		DSN:          l.getString(ctx, "WAREHOUSE_DSN", l.getString(ctx, "DB_PATH", "./db/insidebi.db")),
		QueryTimeout: l.getDuration(ctx, "QUERY_TIMEOUT", 30*time.Second),
		MaxRows:      l.getInt(ctx, "MAX_RESULT_ROWS", 10000),
		AutoMigrate:  l.getBool(ctx, "AUTO_MIGRATE", true),
	}

	cfg.Examples = ExamplesConfig{
		Store:    strings.ToLower(l.getString(ctx, "EXAMPLE_STORE", "memory")),
		Host:     l.getString(ctx, "DB_HOST", "localhost"),
		Port:     l.getString(ctx, "DB_PORT", "5432"),
		Database: l.getString(ctx, "DB_NAME", "insidebi"),
		Username: l.getString(ctx, "DB_USER", "insidebi"),
		Password: l.getString(ctx, "DB_PASSWORD", ""),
		SSLMode:  l.getString(ctx, "DB_SSLMODE", "disable"),
		NResults: l.getInt(ctx, "EXAMPLE_RESULTS", 3),
	}

	cfg.Redis = RedisConfig{
		Addr:     l.getString(ctx, "REDIS_ADDR", "localhost:6379"),
		Password: l.getString(ctx, "REDIS_PASSWORD", ""),
		DB:       l.getInt(ctx, "REDIS_DB", 0),
	}

	provider := strings.ToLower(l.getString(ctx, "LLM_PROVIDER", "ollama"))
	cfg.LLM = LLMConfig{
		Provider:     provider,
		Model:        l.getString(ctx, modelKey(provider), ""),
		BaseURL:      l.getString(ctx, "LLM_BASE_URL", ""),
		OpenAIAPIKey: l.getString(ctx, "OPENAI_API_KEY", ""),
		GroqAPIKey:   l.getString(ctx, "GROQ_API_KEY", ""),
		ClaudeAPIKey: l.getString(ctx, "ANTHROPIC_API_KEY", ""),
		Timeout:      l.getDuration(ctx, "LLM_TIMEOUT", 60*time.Second),
		MaxTokens:    l.getInt(ctx, "LLM_MAX_TOKENS", 1000),
	}

	cfg.Cache = CacheConfig{
		GoldenPath: l.getString(ctx, "GOLDEN_SQL_PATH", "./training/golden_sql.json"),
		Threshold:  l.getFloat(ctx, "CACHE_THRESHOLD", 0.78),
	}

	cfg.Resolver = ResolverConfig{
		MaxAttempts: l.getInt(ctx, "MAX_ATTEMPTS", 3),
	}

	cfg.Feedback = FeedbackConfig{
		Backend:  strings.ToLower(l.getString(ctx, "FEEDBACK_BACKEND", "file")),
		Path:     l.getString(ctx, "FEEDBACK_PATH", "./feedback/feedback.json"),
		RedisKey: l.getString(ctx, "FEEDBACK_REDIS_KEY", "feedback:entries"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:      l.getString(ctx, "JWT_SECRET", ""),
		JWTExpiry:      l.getDuration(ctx, "JWT_EXPIRY", 24*time.Hour),
		RateLimit:      l.getInt(ctx, "RATE_LIMIT", 60),
		AllowAnonymous: l.getBool(ctx, "ALLOW_ANONYMOUS", true),
		AdminPassword:  l.getString(ctx, "ADMIN_PASSWORD", ""),
		APIKeys:        l.getSlice(ctx, "API_KEYS", []string{}),
	}

	cfg.Server = ServerConfig{
		Port:           l.getString(ctx, "PORT", "8000"),
		GinMode:        l.getString(ctx, "GIN_MODE", "debug"),
		AllowedOrigins: l.getSlice(ctx, "ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	return cfg, nil
}

// modelKey names the model variable for a provider
func modelKey(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_MODEL"
	case "groq":
		return "GROQ_MODEL"
	case "claude":
		return "CLAUDE_MODEL"
	default:
		return "OLLAMA_MODEL"
	}
}

// Helper methods for retrieving and parsing configuration values

func (l *Loader) getString(ctx context.Context, key, defaultValue string) string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (l *Loader) getBool(ctx context.Context, key string, defaultValue bool) bool {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func (l *Loader) getInt(ctx context.Context, key string, defaultValue int) int {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func (l *Loader) getFloat(ctx context.Context, key string, defaultValue float64) float64 {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func (l *Loader) getDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func (l *Loader) getSlice(ctx context.Context, key string, defaultValue []string) []string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// MustLoad loads configuration and panics on error
func (l *Loader) MustLoad(ctx context.Context) *Config {
	cfg, err := l.Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
