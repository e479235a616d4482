// Command worker claims queued jobs and runs them through the pipeline,
// publishing a heartbeat file for the API's health surface.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"drafted/internal/adapter/repo"
	"drafted/internal/artifacts"
	"drafted/internal/infra"
	"drafted/internal/jobs"
	"drafted/internal/providers"
	"drafted/internal/providers/gemini"
	"drafted/internal/providers/stub"
	"drafted/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open artifact storage")
	}
	heartbeat, err := storage.NewHeartbeatFile(cfg.HeartbeatPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open heartbeat file")
	}

	store := repo.NewPGStore(pool)
	provider := buildProvider(cfg, &logger)

	mat := artifacts.NewMaterializer(files, store)
	proc := jobs.NewProcessor(store, provider, mat, &logger)
	worker := jobs.NewWorker(store, proc, heartbeat, &logger, cfg.WorkerPollInterval, cfg.JobMaxRetries)

	logger.Info().
		Str("provider", provider.Name()).
		Dur("poll_interval", cfg.WorkerPollInterval).
		Int("max_retries", cfg.JobMaxRetries).
		Msg("worker started")

	if err := worker.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
	logger.Info().Msg("worker stopped")
}

// buildProvider picks the real Gemini client when an API key is configured
// and the deterministic stub otherwise.
func buildProvider(cfg *infra.Config, logger *infra.Logger) providers.Provider {
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			TextModel:  cfg.GeminiTextModel,
			ImageModel: cfg.GeminiImageModel,
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build gemini client")
		}
		return client
	}

	p := stub.New()
	p.Failures = stub.FailurePolicy{
		Scope:      cfg.TransientStubScope,
		FailFirstN: cfg.TransientStubFailFirstN,
		FailEveryN: cfg.TransientStubFailEveryN,
		HTTPStatus: cfg.TransientStubHTTPCode,
	}
	return p
}
