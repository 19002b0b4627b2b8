package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifequest/internal/api"
	"lifequest/internal/auth"
	"lifequest/internal/cloudsave"
	"lifequest/internal/config"
	"lifequest/internal/game"
	"lifequest/internal/narrative"
	"lifequest/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := config.LoadDotEnv(); err != nil {
		logger.Error("load dotenv", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	backend, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("store open failed", "err", err)
		os.Exit(1)
	}
	defer backend.Close()

	crises, err := config.LoadCrises(cfg.CrisesFile)
	if err != nil {
		logger.Error("crisis catalog invalid", "err", err)
		os.Exit(1)
	}

	var narrator game.Narrator = narrative.Static{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := narrative.NewGemini(ctx, narrative.GeminiOptions{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: float32(cfg.GeminiTemperature),
			Timeout:     cfg.NarrativeTimeout,
		}, logger)
		if err != nil {
			logger.Error("gemini init failed", "err", err)
			os.Exit(1)
		}
		defer gemini.Close()
		narrator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set; every year will be a calm year")
	}

	gameSvc := game.NewService(backend, narrator, crises, logger)
	authClient := auth.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)

	opts := api.Options{Verifier: auth.NewCachedVerifier(authClient, cfg.AuthCacheTTL)}
	if cfg.SupabaseServiceKey != "" {
		saves, err := cloudsave.New(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			logger.Error("cloud saves init failed", "err", err)
			os.Exit(1)
		}
		opts.Saves = saves
	}

	server := api.New(logger, authClient, gameSvc, opts)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("lifequest api listening", "addr", cfg.Addr, "crises", len(crises))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
