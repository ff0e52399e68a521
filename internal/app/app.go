// Package app wires configuration into the running components shared by the
// HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/insidebi-ai/internal/auth"
	"github.com/seanankenbruck/insidebi-ai/internal/cache"
	"github.com/seanankenbruck/insidebi-ai/internal/config"
	"github.com/seanankenbruck/insidebi-ai/internal/database"
	"github.com/seanankenbruck/insidebi-ai/internal/feedback"
	"github.com/seanankenbruck/insidebi-ai/internal/llm"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
	"github.com/seanankenbruck/insidebi-ai/internal/processor"
	"github.com/seanankenbruck/insidebi-ai/internal/semantic"
	"github.com/seanankenbruck/insidebi-ai/internal/sqlgen"
	"github.com/seanankenbruck/insidebi-ai/internal/warehouse"
)

// Version is reported by health endpoints
const Version = "1.0.0"

// App holds the wired components
type App struct {
	Config    *config.Config
	Warehouse *warehouse.Client
	Executor  *warehouse.CircuitBreakerClient
	Examples  semantic.ExampleStore
	LLM       *llm.CircuitBreakerClient
	Generator *sqlgen.Generator
	Cache     *cache.QueryCache
	Resolver  *processor.Resolver
	Feedback  feedback.Store
	Redis     *redis.Client
	Health    *observability.HealthChecker

	logger *observability.Logger
}

// New builds every component the question pipeline needs
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewLogger("app")
	}
	a := &App{Config: cfg, logger: logger}

	var err error
	if a.Warehouse, err = OpenWarehouse(ctx, cfg, logger); err != nil {
		return nil, err
	}
	a.Executor = warehouse.NewCircuitBreakerClient(a.Warehouse, "warehouse", warehouse.DefaultCircuitBreakerConfig, logger)

	if a.Examples, err = OpenExampleStore(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	client, err := NewLLMClient(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.LLM = llm.NewCircuitBreakerClient(client, "llm-"+client.Provider(), llm.DefaultCircuitBreakerConfig, logger)

	a.Cache = cache.New(cfg.Cache.Threshold)
	loaded, err := a.Cache.LoadGoldenFile(cfg.Cache.GoldenPath)
	if err != nil {
		logger.Warn(ctx, "Failed to load golden SQL", map[string]interface{}{
			"path":  cfg.Cache.GoldenPath,
			"error": err.Error(),
		})
	} else {
		logger.Info(ctx, "Golden SQL loaded", map[string]interface{}{
			"path":  cfg.Cache.GoldenPath,
			"pairs": loaded,
		})
	}
	observability.CacheEntries.Set(float64(a.Cache.Len()))

	// An in-memory store starts empty; seed it with the same pairs
	if cfg.Examples.Store == "memory" {
		report, err := sqlgen.NewTrainer(a.Examples, logger).TrainFile(ctx, cfg.Cache.GoldenPath)
		switch {
		case err == nil:
			logger.Info(ctx, "Example store seeded", map[string]interface{}{
				"trained": report.Trained,
				"failed":  report.Failed,
			})
		case !os.IsNotExist(err):
			logger.Warn(ctx, "Failed to seed example store", map[string]interface{}{
				"path":  cfg.Cache.GoldenPath,
				"error": err.Error(),
			})
		}
	}

	a.Generator = sqlgen.NewGenerator(a.Examples, a.LLM, sqlgen.Config{
		Dialect:  dialect(a.Warehouse.Driver()),
		DDL:      discoverDDL(ctx, a.Warehouse, logger),
		NResults: cfg.Examples.NResults,
	}, logger)

	a.Resolver = processor.NewResolver(a.Cache, a.Generator, a.Executor, cfg.Resolver.MaxAttempts, logger)

	if cfg.Feedback.Backend == "redis" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.Feedback = feedback.NewRedisStore(a.Redis, cfg.Feedback.RedisKey)
	} else {
		a.Feedback = feedback.NewFileStore(cfg.Feedback.Path)
	}

	a.Health = a.healthChecker()
	return a, nil
}

// Model names the LLM in use
func (a *App) Model() string {
	return a.LLM.Model()
}

// Close releases every open connection
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Redis != nil {
		keep(a.Redis.Close())
	}
	if a.Examples != nil {
		keep(a.Examples.Close())
	}
	if a.Warehouse != nil {
		keep(a.Warehouse.Close())
	}
	return firstErr
}

// NewAuthManager builds the auth manager from the auth section
func NewAuthManager(cfg *config.Config, logger *observability.Logger) (*auth.AuthManager, error) {
	return auth.NewAuthManager(auth.AuthConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		JWTExpiry:      cfg.Auth.JWTExpiry,
		RateLimit:      cfg.Auth.RateLimit,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		AdminPassword:  cfg.Auth.AdminPassword,
		APIKeys:        cfg.Auth.APIKeys,
	}, logger)
}

// Router mounts the question API and the auth endpoints on one engine
func (a *App) Router(authManager *auth.AuthManager, logger *observability.Logger) *gin.Engine {
	qp := processor.NewQueryProcessor(a.Resolver, a.Feedback, a.Model(), logger)
	qp.SetHealthChecker(a.Health)

	router := qp.SetupRoutes(authManager, a.Config.Server.AllowedOrigins)
	auth.NewAuthHandlers(authManager).SetupRoutes(router.Group("/api"))
	return router
}

func (a *App) healthChecker() *observability.HealthChecker {
	hc := observability.NewHealthChecker("query-processor", Version)

	hc.Register("warehouse", observability.WarehouseHealthCheck(a.Executor.Ping))
	hc.Register("example_store", observability.ExampleStoreHealthCheck(a.Examples.Ping))
	hc.Register("llm_service", observability.LLMHealthCheck(func(ctx context.Context) error {
		if a.LLM.State() == gobreaker.StateOpen {
			return fmt.Errorf("circuit breaker open for %s", a.LLM.Provider())
		}
		return nil
	}))
	hc.Register("query_cache", observability.CacheHealthCheck(a.Cache.Len))
	if a.Redis != nil {
		hc.Register("redis", observability.RedisHealthCheck(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}))
	}
	return hc
}

// OpenWarehouse connects to the dataset, creating and migrating a sqlite
// file when auto-migration is on
func OpenWarehouse(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*warehouse.Client, error) {
	if cfg.Warehouse.Driver == warehouse.DriverSQLite && cfg.Warehouse.AutoMigrate {
		if dir := filepath.Dir(cfg.Warehouse.DSN); dir != "." && !strings.HasPrefix(cfg.Warehouse.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create warehouse directory: %w", err)
			}
		}
	}

	client, err := warehouse.Open(ctx, warehouse.Config{
		Driver:       cfg.Warehouse.Driver,
		DSN:          cfg.Warehouse.DSN,
		QueryTimeout: cfg.Warehouse.QueryTimeout,
		MaxRows:      cfg.Warehouse.MaxRows,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Warehouse.AutoMigrate {
		if err := database.Migrate(ctx, client.DB(), client.Driver(), database.SetWarehouse); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to migrate warehouse: %w", err)
		}
		logger.Info(ctx, "Warehouse migrated", map[string]interface{}{
			"driver": client.Driver(),
		})
	}
	return client, nil
}

// ExamplesPostgresConfig maps the examples section onto a connection config
func ExamplesPostgresConfig(cfg *config.Config) semantic.PostgresConfig {
	return semantic.PostgresConfig{
		Host:     cfg.Examples.Host,
		Port:     cfg.Examples.Port,
		Database: cfg.Examples.Database,
		Username: cfg.Examples.Username,
		Password: cfg.Examples.Password,
		SSLMode:  cfg.Examples.SSLMode,
	}
}

// OpenExampleStore opens the configured few-shot example store
func OpenExampleStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (semantic.ExampleStore, error) {
	embedder := semantic.NewHashEmbedder()
	if cfg.Examples.Store != "postgres" {
		return semantic.NewMemoryStore(embedder), nil
	}

	pg := ExamplesPostgresConfig(cfg)
	if cfg.Warehouse.AutoMigrate {
		if err := database.RunMigrations(ctx, database.MigrationConfig{
			Driver:      "postgres",
			DatabaseURL: pg.DSN(),
			Set:         database.SetExamples,
		}); err != nil {
			return nil, fmt.Errorf("failed to migrate example store: %w", err)
		}
	}

	store, err := semantic.NewPostgresStore(pg, embedder)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Connected to example store", map[string]interface{}{
		"host":     pg.Host,
		"database": pg.Database,
	})
	return store, nil
}

// NewLLMClient builds the configured provider's client
func NewLLMClient(cfg *config.Config) (llm.Client, error) {
	return llm.NewClient(llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey(),
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	})
}

func dialect(driver string) string {
	if driver == warehouse.DriverPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// discoverDDL describes the live schema, falling back to the built-in DDL
func discoverDDL(ctx context.Context, client *warehouse.Client, logger *observability.Logger) string {
	schema, err := client.Discover(ctx)
	if err != nil {
		logger.Warn(ctx, "Schema discovery failed, using built-in DDL", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}
	if len(schema.Tables) == 0 {
		return ""
	}
	return schema.CompactDDL()
}
