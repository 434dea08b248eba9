package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"evalserver/internal/http/handlers"
	"evalserver/internal/http/httpapi"
	"evalserver/internal/infra"
	"evalserver/internal/registry"
	"evalserver/internal/runner"
	"evalserver/internal/service"
	"evalserver/internal/warehouse"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Warehouse export is optional; without it completed results only live
	// in the registry.
	var exporter service.Exporter
	if cfg.WarehouseEnabled {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect warehouse database")
		}
		defer pool.Close()

		writer := warehouse.NewWriter(infra.NewSQLRunner(pool, logger), cfg.WarehouseTable, logger)
		if err := writer.EnsureTable(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare warehouse table")
		}
		exporter = writer
		logger.Info().Str("table", cfg.WarehouseTable).Msg("warehouse export enabled")
	}

	svc := service.New(service.Options{
		Registry: registry.New(logger),
		Runner: &runner.CLIRunner{
			Bin:               cfg.RunnerBin,
			ConfigPath:        cfg.RunnerConfigPath,
			OutputDir:         cfg.RunnerOutputDir,
			AuthToken:         cfg.TargetAuthToken,
			OpenAIEndpoint:    cfg.OpenAIEndpoint,
			OpenAIKey:         cfg.OpenAIKey,
			OpenAIModel:       cfg.OpenAIModel,
			ScorerTemperature: cfg.ScorerTemperature,
			Logger:            logger,
		},
		Exporter:      exporter,
		MaxConcurrent: cfg.MaxConcurrentEvaluations,
		Logger:        logger,
	})

	app := handlers.NewApp(svc, logger, version)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Let in-flight evaluations record their final state before exit.
	svc.Wait()
	logger.Info().Msg("server stopped")
}
