package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"plantshot/internal/adapter/repo"
	"plantshot/internal/guard"
	"plantshot/internal/infra"
)

// The worker fails generation batches that never reached a terminal state so
// their organization can start a new one.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	sweeper := guard.NewSweeper(repo.NewGenerationRepository(runner), cfg.StaleJobAfter, cfg.SweepInterval, &logger)

	logger.Info().
		Dur("stale_after", cfg.StaleJobAfter).
		Dur("interval", cfg.SweepInterval).
		Msg("worker: started")
	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
