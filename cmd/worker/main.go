package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"videogen/internal/adapter/repo"
	"videogen/internal/domain"
	"videogen/internal/imageprep"
	"videogen/internal/infra"
	"videogen/internal/infra/credentials"
	"videogen/internal/lifecycle"
	"videogen/internal/providers/runway"
	videoprovider "videogen/internal/providers/video"
	"videogen/internal/storage"
)

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
	jobs := repo.NewJobRepository(runner)
	if err := jobs.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: ensure schema failed")
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	tokens := credentials.NewStore(runner)
	if err := tokens.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: ensure schema failed")
	}
	apiKey, err := credentials.ResolveRunwayAPIKey(ctx, tokens, cfg.RunwayAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: runway api key unavailable")
	}
	client, err := runway.NewClient(runway.Options{
		APIKey:          apiKey,
		BaseURL:         cfg.RunwayBaseURL,
		APIVersion:      cfg.RunwayAPIVersion,
		RequestTimeout:  cfg.RunwayRequestTimeout,
		DownloadTimeout: cfg.RunwayDownloadTimeout,
		Logger:          &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure runway client")
	}

	policy, err := imageprep.PolicyFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid image policy")
	}
	generator := videoprovider.NewRunwayGenerator(
		client,
		domain.DefaultCatalog(),
		imageprep.NewEncoder(policy, &logger),
		lifecycle.ConfigFromEnv(cfg, &logger),
		&logger,
	)

	worker := &jobWorker{
		jobs:      jobs,
		store:     fileStore,
		generator: generator,
		policy:    policy,
		logger:    logger,
		idle:      jobPollInterval,
		sleep:     lifecycle.Sleep,
	}
	if err := worker.Run(ctx, cfg.WorkerConcurrency); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
