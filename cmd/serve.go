package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalog/vitalog/internal/api"
	"github.com/vitalog/vitalog/internal/assistant"
	"github.com/vitalog/vitalog/internal/auth"
	"github.com/vitalog/vitalog/internal/chat"
	"github.com/vitalog/vitalog/internal/config"
	"github.com/vitalog/vitalog/internal/database"
	"github.com/vitalog/vitalog/internal/health"
	"github.com/vitalog/vitalog/internal/knowledge"
	"github.com/vitalog/vitalog/internal/observability"
	"github.com/vitalog/vitalog/internal/reports"
	"github.com/vitalog/vitalog/internal/settings"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	logger.Info("starting HTTP API server", "version", Version)

	traceShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.Insecure,
		Environment: cfg.Observability.Environment,
		ServiceName: cfg.Observability.ServiceName,
		SampleRatio: cfg.Observability.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer flushCancel()
		if err := traceShutdown(flushCtx); err != nil {
			logger.Warn("trace flush failed", "error", err)
		}
	}()

	pool, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	authStore, err := auth.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating auth store: %w", err)
	}
	authSvc, err := auth.NewService(authStore, auth.Config{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		BcryptCost:      cfg.BcryptCost,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	healthStore, err := health.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating health store: %w", err)
	}
	settingsStore, err := settings.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating settings store: %w", err)
	}

	gemini, err := assistant.NewGemini(ctx, assistant.Config{
		APIKey:      cfg.GeminiAPIKey,
		ChatModel:   cfg.ChatModel,
		EmbedModel:  cfg.EmbedderModel,
		Temperature: cfg.Temperature,
		MaxTokens:   int32(cfg.MaxTokens),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating assistant client: %w", err)
	}

	knowledgeStore, err := knowledge.NewStore(pool, gemini, logger)
	if err != nil {
		return fmt.Errorf("creating knowledge store: %w", err)
	}

	chatStore, err := chat.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating chat store: %w", err)
	}
	chatSvc, err := chat.NewService(chatStore, settingsStore, knowledgeStore, gemini, chat.ServiceConfig{
		HistoryWindow: cfg.HistoryWindow,
		RetrieveTopK:  cfg.RetrievalTopK,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating chat service: %w", err)
	}

	reportsStore, err := reports.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating reports store: %w", err)
	}
	reportsSvc, err := reports.NewService(reportsStore, healthStore, logger)
	if err != nil {
		return fmt.Errorf("creating reports service: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Auth:        authSvc,
		Health:      healthStore,
		Settings:    settingsStore,
		Chat:        chatSvc,
		ChatStore:   chatStore,
		Reports:     reportsSvc,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.IsDev(),
		TrustProxy:  cfg.TrustProxy,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
