package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildbyprohor/studio-api/internal/config"
	"github.com/buildbyprohor/studio-api/internal/conversation"
	"github.com/buildbyprohor/studio-api/internal/handler"
	"github.com/buildbyprohor/studio-api/internal/identity"
	"github.com/buildbyprohor/studio-api/internal/infra/cache"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/infra/resilience"
	"github.com/buildbyprohor/studio-api/internal/remote"
	"github.com/buildbyprohor/studio-api/internal/session"
	"github.com/buildbyprohor/studio-api/internal/session/banmark"
	"github.com/buildbyprohor/studio-api/internal/ticket"
	"github.com/buildbyprohor/studio-api/internal/user"

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
		zap.Bool("use_firebase", cfg.UseFirebase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("profile_edit_cooldown", cfg.ProfileEditCooldown),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "studio-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	emailCache := cache.New[map[string]string](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("firebase")

	// --- Remote store ---
	var store remote.Store
	if cfg.UseFirebase && cfg.FirebaseURL != "" {
		logger.Info("using Firebase Realtime Database as data backend",
			zap.String("database_url", cfg.FirebaseURL),
		)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		store = remote.NewFirebase(httpClient, cfg.FirebaseURL, cfg.FirebaseAuthToken, cb, resilienceCfg, logger)
	} else {
		logger.Warn("using in-process store: data does not survive restarts")
		store = remote.NewMemory()
	}

	// --- Durable ban marker ---
	marks, err := banmark.Open(cfg.BanMarkerPath)
	if err != nil {
		logger.Fatal("failed to open ban marker store", zap.Error(err))
	}
	defer marks.Close()

	// --- Identity & session ---
	hub := identity.NewHub(cfg.SessionSecret, logger)
	sessions := session.NewManager(store, hub, marks, metrics, logger)
	sessions.Start(context.Background())
	defer sessions.Stop()

	// --- Services ---
	chats := conversation.NewStore(store, metrics, logger)
	lists := conversation.NewListStore(store, emailCache, metrics, logger)
	tickets := ticket.NewService(store, metrics, logger)
	users := user.NewService(store, cfg.ProfileEditCooldown, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(hub, sessions, chats, lists, tickets, users, store, metrics, cfg.AllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No write timeout: the SSE streams hold their response open.
		WriteTimeout: 0,
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
