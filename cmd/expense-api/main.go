package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"expenses/internal/api"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, logger := cli.Bootstrap()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := cli.SignalContext()
	defer stop()

	m := metrics.New("expense_api")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return err
	}
	result, err := backend.NewFactory(logger, m).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	srv, err := api.NewServer(api.Config{
		Addr:    ":" + cfg.APIPort,
		Service: result.Service,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		logger.Error("Failed to create API server", log.FieldError, err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	logger.Info("Starting expense API",
		log.FieldOperation, log.OpStartup,
		"port", cfg.APIPort,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"amqp_enabled", cfg.AMQPURL != "")
	cli.ServeUntilDone(gctx, g, srv, logger)

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.APIPort)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
