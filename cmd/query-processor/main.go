package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seanankenbruck/insidebi-ai/internal/app"
	"github.com/seanankenbruck/insidebi-ai/internal/config"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

func main() {
	logger := observability.NewLogger("main").WithLevel(observability.ParseLevel(os.Getenv("LOG_LEVEL")))
	defer logger.Sync()
	ctx := context.Background()

	cfg, err := config.NewDefaultLoader().Load(ctx)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.ValidateWithContext(); err != nil {
		log.Fatal(err)
	}
	gin.SetMode(cfg.Server.GinMode)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "Failed to initialise components", err, nil)
		log.Fatal("Failed to initialise components:", err)
	}
	defer a.Close()

	authManager, err := app.NewAuthManager(cfg, observability.NewLogger("auth"))
	if err != nil {
		log.Fatal("Failed to initialise auth:", err)
	}
	defer authManager.Close()

	router := a.Router(authManager, observability.NewLogger("query-processor"))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Query processor starting", map[string]interface{}{
			"port":       cfg.Server.Port,
			"version":    app.Version,
			"provider":   cfg.LLM.Provider,
			"model":      a.Model(),
			"warehouse":  cfg.Warehouse.Driver,
			"cache_size": a.Cache.Len(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Failed to start server", err, nil)
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Forced shutdown", err, nil)
	}
}
