package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"plantshot/internal/adapter/repo"
	"plantshot/internal/events"
	"plantshot/internal/guard"
	"plantshot/internal/http/handlers"
	httpapi "plantshot/internal/http/httpapi"
	"plantshot/internal/infra"
	"plantshot/internal/infra/credentials"
	"plantshot/internal/pipeline"
	"plantshot/internal/providers/genai"
	"plantshot/internal/storage"
	"plantshot/internal/usage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	generations := repo.NewGenerationRepository(runner)

	apiKey, err := credentials.NewStore(runner).ResolveGeminiAPIKey(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("api: failed to load gemini api key from store")
	}
	client, err := genai.NewClient(genai.Options{
		APIKey:      apiKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		HTTPClient:  &http.Client{},
		Logger:      &logger,
		MinInterval: cfg.GeminiMinInterval,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure gemini client")
	}
	if !client.HasCredentials() {
		logger.Warn().Str("model", client.Model()).Msg("api: gemini api key missing, every generation will fail")
	}

	uploader, staticDir, err := newUploader(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("api: failed to configure storage")
	}

	var mirror events.Handler
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, &logger)
		defer publisher.Close()
		mirror = publisher.Handler()
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaEventsTopic).Msg("api: mirroring events to kafka")
	}

	ledger := usage.NewLedger(repo.NewUsageRepository(runner), &logger)
	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Client:       client,
		Store:        generations,
		Uploader:     uploader,
		Usage:        ledger,
		Logger:       &logger,
		MaxBatchSize: cfg.MaxBatchSize,
	})
	service := pipeline.NewService(orchestrator, guard.New(generations, &logger), ledger, &logger)

	app := handlers.NewApp(service, generations, dbpool, mirror, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// A batch can outlive the grace period; its record stays processing until
	// the sweeper fails it after STALE_JOB_AFTER_MINUTES.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Dur("grace", cfg.ShutdownGrace).Msg("failed to shutdown server; unfinished batches are left to the sweeper")
	}
	logger.Info().Msg("server stopped")
}

// newUploader picks the storage backend. The returned directory is non-empty
// only for the file driver, whose objects the API serves itself.
func newUploader(ctx context.Context, cfg *infra.Config) (storage.Uploader, string, error) {
	if cfg.StorageDriver == infra.StorageDriverMinio {
		store, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
			PublicURL: cfg.MinioPublicURL,
		})
		return store, "", err
	}

	path := cfg.StoragePath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	store, err := storage.NewFileStore(path, cfg.StorageBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.BasePath(), nil
}
