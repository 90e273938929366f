package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/baronlegal/voice-intake-backend/internal/api"
	"github.com/baronlegal/voice-intake-backend/internal/config"
	"github.com/baronlegal/voice-intake-backend/internal/dispatch"
	"github.com/baronlegal/voice-intake-backend/internal/email"
	"github.com/baronlegal/voice-intake-backend/internal/intake"
	"github.com/baronlegal/voice-intake-backend/internal/store"
	"github.com/baronlegal/voice-intake-backend/internal/translate"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := store.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(pool)

	// ── Email (EmailJS) ───────────────────────────────────────────────────────
	mailer := email.NewEmailJSClient(
		cfg.EmailJSServiceID,
		cfg.EmailJSTemplateID,
		cfg.EmailJSPublicKey,
		cfg.NotifyToAddr,
		cfg.FromName,
	)

	// ── Translation (Google Translate) ────────────────────────────────────────
	// Optional: without a key, non-English submissions are stored without a
	// translation rather than failing.
	var translator translate.Translator
	if cfg.TranslateAPIKey != "" {
		translator = translate.NewGoogleClient(cfg.TranslateAPIKey)
		logger.Info("translation enabled")
	} else {
		logger.Info("translation disabled (no GOOGLE_TRANSLATE_API_KEY)")
	}

	// ── Workflows ─────────────────────────────────────────────────────────────
	intakeSvc := intake.New(st, mailer, translator, logger)
	batcher := dispatch.New(st, mailer, cfg.DispatchDelay, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		intakeSvc,
		batcher,
		st,
		mailer,
		api.Config{
			AllowedOrigin: cfg.AllowedOrigin,
			Env:           cfg.Env,
		},
		logger,
	)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Generous — a bulk dispatch holds its request open for the whole
		// throttled batch. The per-route chi timeouts are the real limits.
		WriteTimeout: 16 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal; the HTTP server respects it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish. An in-flight
	// bulk dispatch will be cut off; the dispatch_runs audit row for it is
	// simply absent and the batch can be re-run.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
