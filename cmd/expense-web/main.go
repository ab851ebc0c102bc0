package main

import (
	"os"

	"golang.org/x/sync/errgroup"

	"expenses/internal/apiclient"
	"expenses/internal/cli"
	apphttp "expenses/internal/http"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

func main() {
	cfg, logger := cli.Bootstrap()

	m := metrics.New("expense_web")

	client, err := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(m))
	if err != nil {
		logger.Error("Failed to create expense API client", log.FieldError, err, log.FieldURL, cfg.APIBaseURL)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		API:                client,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Metrics:            m,
	})
	if err != nil {
		logger.Error("Failed to create web server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	logger.Info("Starting expense web frontend",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		log.FieldURL, client.BaseURL())
	cli.ServeUntilDone(gctx, g, srv, logger)

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
