package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifequest/internal/config"
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
	cfg, err := config.LoadWorkerFromEnv()
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

	prune := func() error {
		cutoff := time.Now().UTC().Add(-cfg.IdempotencyKeyTTL)
		n, err := backend.PruneIdempotencyKeys(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("idempotency keys pruned", "removed", n, "cutoff", cutoff)
		return nil
	}

	if cfg.RunOnce {
		if err := prune(); err != nil {
			logger.Error("prune failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.Every)
	defer ticker.Stop()

	logger.Info("worker started", "every", cfg.Every.String(), "key_ttl", cfg.IdempotencyKeyTTL.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := prune(); err != nil {
				logger.Error("prune failed", "err", err)
			}
		}
	}
}
