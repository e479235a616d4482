// Command api serves the HTTP surface. With RUN_INPROCESS_WORKER it also
// runs the job worker in the same process, which is the single-node
// development setup.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"drafted/internal/adapter/repo"
	"drafted/internal/artifacts"
	"drafted/internal/http/handlers"
	"drafted/internal/http/httpapi"
	"drafted/internal/infra"
	"drafted/internal/intake"
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
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	redisClient, err := infra.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

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

	app := &handlers.App{
		Store:        store,
		Files:        files,
		Exporter:     artifacts.NewExporter(files, store),
		Intake:       intake.NewService(store, cfg.IdempotencyWindow, &logger),
		Heartbeat:    heartbeat,
		Pool:         pool,
		Redis:        redisClient,
		ProviderMode: provider.Name(),
		JWTSecret:    cfg.JWTSecret,
		Cfg:          cfg,
		Logger:       &logger,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.RunInprocessWorker {
		g.Go(func() error {
			mat := artifacts.NewMaterializer(files, store)
			proc := jobs.NewProcessor(store, provider, mat, &logger)
			worker := jobs.NewWorker(store, proc, heartbeat, &logger, cfg.WorkerPollInterval, cfg.JobMaxRetries)
			logger.Info().Msg("in-process worker started")
			return worker.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
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
