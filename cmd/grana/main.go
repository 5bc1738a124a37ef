package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/granaapp/grana-go/internal/config"
	"github.com/granaapp/grana-go/internal/handler"
	"github.com/granaapp/grana-go/internal/infra/cache"
	"github.com/granaapp/grana-go/internal/infra/jsonfile"
	"github.com/granaapp/grana-go/internal/infra/observability"
	"github.com/granaapp/grana-go/internal/infra/resilience"
	"github.com/granaapp/grana-go/internal/infra/rest"
	"github.com/granaapp/grana-go/internal/port"
	"github.com/granaapp/grana-go/internal/service"
	"github.com/granaapp/grana-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_rest_backend", cfg.RESTBackendURL != ""),
		zap.String("data_file", cfg.DataFile),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("unlock_ttl", cfg.UnlockTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "grana")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Persistence backend ---
	var persist port.Persistence
	if cfg.RESTBackendURL != "" {
		logger.Info("using REST document backend",
			zap.String("backend_url", cfg.RESTBackendURL),
		)
		persist = rest.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.RESTBackendURL,
			cfg.RESTAPIKey,
			resilience.NewCircuitBreaker("rest-backend"),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			cache.New[[][]byte](cfg.CacheTTL),
			metrics,
			logger,
		)
	} else {
		logger.Info("using local JSON file backend", zap.String("path", cfg.DataFile))
		persist, err = jsonfile.Open(cfg.DataFile, logger)
		if err != nil {
			logger.Fatal("failed to open data file", zap.Error(err))
		}
	}

	// --- Store ---
	st := store.New(persist, logger)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.Load(loadCtx); err != nil {
		loadCancel()
		logger.Fatal("failed to load collections", zap.Error(err))
	}
	loadCancel()

	// --- Service ---
	svc := service.NewFinance(st, metrics, logger, cfg.JWTSecret, cfg.UnlockTTL)
	svc.NotifyRecurringDue(context.Background(), time.Now())

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger, cfg.AllowedOrigins)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
