package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// mapProvider serves secrets from a map
type mapProvider map[string]string

func (m mapProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return m[key], nil
}

func (m mapProvider) Name() string                         { return "map" }
func (m mapProvider) IsAvailable(ctx context.Context) bool { return true }

func TestEnvProvider(t *testing.T) {
	ctx := context.Background()
	t.Setenv("TEST_SECRET", "test-value")

	provider := NewEnvProvider()

	t.Run("retrieves existing env var", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "TEST_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "test-value" {
			t.Errorf("expected 'test-value', got '%s'", value)
		}
	})

	t.Run("returns empty for non-existent env var", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "INSIDEBI_NON_EXISTENT")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("is always available", func(t *testing.T) {
		if !provider.IsAvailable(ctx) {
			t.Error("env provider should always be available")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if provider.Name() != "env" {
			t.Errorf("expected name 'env', got '%s'", provider.Name())
		}
	})
}

func TestFileProvider(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "groq-api-key"), []byte("gsk-test-key\n"), 0600); err != nil {
		t.Fatalf("failed to create test secret file: %v", err)
	}

	provider := NewFileProvider(tmpDir)

	t.Run("retrieves secret from file", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "GROQ_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "gsk-test-key" {
			t.Errorf("expected 'gsk-test-key', got '%s'", value)
		}
	})

	t.Run("returns empty for non-existent file", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "NON_EXISTENT_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("availability", func(t *testing.T) {
		notADir := filepath.Join(tmpDir, "not-a-directory")
		if err := os.WriteFile(notADir, []byte("content"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		tests := []struct {
			name     string
			path     string
			expected bool
		}{
			{"existing directory", tmpDir, true},
			{"missing directory", "/non/existent/path", false},
			{"empty path", "", false},
			{"regular file", notADir, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := NewFileProvider(tt.path).IsAvailable(ctx); got != tt.expected {
					t.Errorf("IsAvailable() = %v, expected %v", got, tt.expected)
				}
			})
		}
	})

	t.Run("returns error when secrets path not configured", func(t *testing.T) {
		_, err := NewFileProvider("").GetSecret(ctx, "ANY_KEY")
		if err == nil {
			t.Error("expected error when secrets path is empty")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if provider.Name() != "file" {
			t.Errorf("expected name 'file', got '%s'", provider.Name())
		}
	})
}

func TestDotenvProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".env")
	content := "LLM_PROVIDER=groq\n# comment\nGROQ_API_KEY=\"gsk-from-dotenv\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	provider := NewDotenvProvider(path)

	t.Run("reads values from the file", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "GROQ_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "gsk-from-dotenv" {
			t.Errorf("expected 'gsk-from-dotenv', got '%s'", value)
		}
	})

	t.Run("returns empty for missing keys", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "OPENAI_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("is available only when the file exists", func(t *testing.T) {
		if !provider.IsAvailable(ctx) {
			t.Error("dotenv provider should be available when the file exists")
		}
		if NewDotenvProvider(filepath.Join(t.TempDir(), ".env")).IsAvailable(ctx) {
			t.Error("dotenv provider should not be available for a missing file")
		}
		if NewDotenvProvider("").IsAvailable(ctx) {
			t.Error("dotenv provider should not be available with empty path")
		}
	})

	t.Run("returns error for unreadable file", func(t *testing.T) {
		_, err := NewDotenvProvider(filepath.Join(t.TempDir(), "missing.env")).GetSecret(ctx, "ANY")
		if err == nil {
			t.Error("expected error reading a missing file")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if provider.Name() != "dotenv" {
			t.Errorf("expected name 'dotenv', got '%s'", provider.Name())
		}
	})
}

func TestChainProvider(t *testing.T) {
	ctx := context.Background()
	t.Setenv("ENV_SECRET", "from-env")

	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "file-secret"), []byte("from-file"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	dotenvPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(dotenvPath, []byte("DOTENV_SECRET=from-dotenv\nENV_SECRET=shadowed\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	chain := NewChainProvider(NewFileProvider(tmpDir), NewDotenvProvider(dotenvPath), NewEnvProvider())

	tests := []struct {
		key      string
		expected string
		source   string
	}{
		{"FILE_SECRET", "from-file", "file"},
		{"DOTENV_SECRET", "from-dotenv", "dotenv"},
		{"ENV_SECRET", "shadowed", "dotenv"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			value, err := chain.GetSecret(ctx, tt.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if value != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, value)
			}

			_, source, err := chain.Lookup(ctx, tt.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if source != tt.source {
				t.Errorf("expected source '%s', got '%s'", tt.source, source)
			}
		})
	}

	t.Run("environment answers when nothing shadows it", func(t *testing.T) {
		t.Setenv("ONLY_IN_ENV", "from-env")
		value, source, err := chain.Lookup(ctx, "ONLY_IN_ENV")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "from-env" || source != "env" {
			t.Errorf("expected from-env via env, got '%s' via '%s'", value, source)
		}
	})

	t.Run("a broken provider does not hide later ones", func(t *testing.T) {
		broken := filepath.Join(tmpDir, "broken.env")
		if err := os.WriteFile(broken, []byte("BAD-KEY=1\n"), 0600); err != nil {
			t.Fatalf("failed to write .env: %v", err)
		}
		t.Setenv("RESCUED", "from-env")

		withBroken := NewChainProvider(NewDotenvProvider(broken), NewEnvProvider())
		value, source, err := withBroken.Lookup(ctx, "RESCUED")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "from-env" || source != "env" {
			t.Errorf("expected from-env via env, got '%s' via '%s'", value, source)
		}

		if _, _, err := NewChainProvider(NewDotenvProvider(broken)).Lookup(ctx, "RESCUED"); err == nil {
			t.Error("expected the read error when no provider has the key")
		}
	})

	t.Run("returns error when all providers fail", func(t *testing.T) {
		emptyChain := NewChainProvider(NewFileProvider("/non/existent"))
		if _, err := emptyChain.GetSecret(ctx, "ANY_KEY"); err == nil {
			t.Error("expected error when all providers fail")
		}
		if emptyChain.IsAvailable(ctx) {
			t.Error("chain should not be available when no providers are available")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if chain.Name() != "chain" {
			t.Errorf("expected name 'chain', got '%s'", chain.Name())
		}
	})
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("loads all configuration sections", func(t *testing.T) {
		loader := NewLoader(mapProvider{
			"WAREHOUSE_DRIVER": "postgres",
			"WAREHOUSE_DSN":    "postgres://bi@warehouse/risk",
			"EXAMPLE_STORE":    "postgres",
			"DB_HOST":          "vector-db",
			"REDIS_ADDR":       "test-redis:6379",
			"LLM_PROVIDER":     "groq",
			"GROQ_MODEL":       "llama-3.3-70b-versatile",
			"GROQ_API_KEY":     "gsk-test",
			"CACHE_THRESHOLD":  "0.9",
			"MAX_ATTEMPTS":     "5",
			"FEEDBACK_BACKEND": "redis",
			"JWT_SECRET":       "test-jwt-secret-with-sufficient-length-32chars",
			"RATE_LIMIT":       "50",
			"API_KEYS":         "key-one, key-two",
			"ALLOWED_ORIGINS":  "https://bi.example.com",
			"PORT":             "9000",
		})

		cfg, err := loader.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading config: %v", err)
		}

		if cfg.Warehouse.Driver != "postgres" || cfg.Warehouse.DSN != "postgres://bi@warehouse/risk" {
			t.Errorf("unexpected warehouse config: %+v", cfg.Warehouse)
		}
		if cfg.Examples.Store != "postgres" || cfg.Examples.Host != "vector-db" {
			t.Errorf("unexpected examples config: %+v", cfg.Examples)
		}
		if cfg.Redis.Addr != "test-redis:6379" {
			t.Errorf("expected Redis addr 'test-redis:6379', got '%s'", cfg.Redis.Addr)
		}
		if cfg.LLM.Provider != "groq" || cfg.LLM.Model != "llama-3.3-70b-versatile" {
			t.Errorf("unexpected LLM config: %+v", cfg.LLM)
		}
		if cfg.LLM.APIKey() != "gsk-test" {
			t.Errorf("expected groq key, got '%s'", cfg.LLM.APIKey())
		}
		if cfg.Cache.Threshold != 0.9 {
			t.Errorf("expected threshold 0.9, got %v", cfg.Cache.Threshold)
		}
		if cfg.Resolver.MaxAttempts != 5 {
			t.Errorf("expected 5 attempts, got %d", cfg.Resolver.MaxAttempts)
		}
		if cfg.Feedback.Backend != "redis" {
			t.Errorf("expected redis feedback backend, got '%s'", cfg.Feedback.Backend)
		}
		if cfg.Auth.RateLimit != 50 {
			t.Errorf("expected rate limit 50, got %d", cfg.Auth.RateLimit)
		}
		if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[1] != "key-two" {
			t.Errorf("expected two trimmed API keys, got %v", cfg.Auth.APIKeys)
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://bi.example.com" {
			t.Errorf("unexpected allowed origins: %v", cfg.Server.AllowedOrigins)
		}
		if cfg.Server.Port != "9000" {
			t.Errorf("expected port '9000', got '%s'", cfg.Server.Port)
		}
	})

	t.Run("uses default values when nothing is set", func(t *testing.T) {
		cfg, err := NewLoader(mapProvider{}).Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Warehouse.Driver != "sqlite" || cfg.Warehouse.DSN != "./db/insidebi.db" {
			t.Errorf("unexpected warehouse defaults: %+v", cfg.Warehouse)
		}
		if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "" {
			t.Errorf("unexpected LLM defaults: %+v", cfg.LLM)
		}
		if cfg.Examples.Store != "memory" || cfg.Examples.NResults != 3 {
			t.Errorf("unexpected examples defaults: %+v", cfg.Examples)
		}
		if cfg.Cache.Threshold != 0.78 {
			t.Errorf("expected default threshold 0.78, got %v", cfg.Cache.Threshold)
		}
		if cfg.Resolver.MaxAttempts != 3 {
			t.Errorf("expected default 3 attempts, got %d", cfg.Resolver.MaxAttempts)
		}
		if !cfg.Auth.AllowAnonymous {
			t.Error("expected anonymous access by default")
		}
		if cfg.Feedback.Backend != "file" {
			t.Errorf("expected file feedback backend, got '%s'", cfg.Feedback.Backend)
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
			t.Errorf("unexpected default origins: %v", cfg.Server.AllowedOrigins)
		}
	})

	t.Run("DB_PATH selects the sqlite file", func(t *testing.T) {
		cfg, err := NewLoader(mapProvider{"DB_PATH": "/data/risk.db"}).Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Warehouse.DSN != "/data/risk.db" {
			t.Errorf("expected DSN '/data/risk.db', got '%s'", cfg.Warehouse.DSN)
		}
	})

	t.Run("model key follows the provider", func(t *testing.T) {
		tests := []struct {
			provider string
			key      string
		}{
			{"ollama", "OLLAMA_MODEL"},
			{"openai", "OPENAI_MODEL"},
			{"groq", "GROQ_MODEL"},
			{"claude", "CLAUDE_MODEL"},
		}
		for _, tt := range tests {
			cfg, err := NewLoader(mapProvider{"LLM_PROVIDER": tt.provider, tt.key: "custom"}).Load(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.LLM.Model != "custom" {
				t.Errorf("%s: expected model from %s, got '%s'", tt.provider, tt.key, cfg.LLM.Model)
			}
		}
	})

	t.Run("parses durations and ignores bad values", func(t *testing.T) {
		cfg, err := NewLoader(mapProvider{
			"JWT_EXPIRY":    "12h",
			"QUERY_TIMEOUT": "45s",
			"LLM_TIMEOUT":   "soon",
			"RATE_LIMIT":    "many",
		}).Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Auth.JWTExpiry != 12*time.Hour {
			t.Errorf("expected JWT expiry 12h, got %v", cfg.Auth.JWTExpiry)
		}
		if cfg.Warehouse.QueryTimeout != 45*time.Second {
			t.Errorf("expected query timeout 45s, got %v", cfg.Warehouse.QueryTimeout)
		}
		if cfg.LLM.Timeout != 60*time.Second {
			t.Errorf("expected default LLM timeout, got %v", cfg.LLM.Timeout)
		}
		if cfg.Auth.RateLimit != 60 {
			t.Errorf("expected default rate limit 60, got %d", cfg.Auth.RateLimit)
		}
	})
}

func TestK8sProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("reads secrets from mounted kubernetes secret files", func(t *testing.T) {
		tmpDir := t.TempDir()
		if err := os.WriteFile(filepath.Join(tmpDir, "anthropic-api-key"), []byte("sk-ant-k8s-test-key"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, "db-password"), []byte("my-password\n"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		provider := NewK8sProvider(tmpDir, "test-namespace")

		key, err := provider.GetSecret(ctx, "ANTHROPIC_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "sk-ant-k8s-test-key" {
			t.Errorf("expected 'sk-ant-k8s-test-key', got '%s'", key)
		}

		password, err := provider.GetSecret(ctx, "DB_PASSWORD")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if password != "my-password" {
			t.Errorf("expected 'my-password' (trimmed), got '%s'", password)
		}
	})

	t.Run("is not available when secrets directory doesn't exist", func(t *testing.T) {
		if NewK8sProvider("/non/existent/path", "test-namespace").IsAvailable(ctx) {
			t.Error("provider should not be available when secrets directory doesn't exist")
		}
	})

	t.Run("has correct name and namespace", func(t *testing.T) {
		provider := NewK8sProvider("", "production")
		if provider.Name() != "kubernetes" {
			t.Errorf("expected name 'kubernetes', got '%s'", provider.Name())
		}
		if provider.GetNamespace() != "production" {
			t.Errorf("expected namespace 'production', got '%s'", provider.GetNamespace())
		}
	})
}
