package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/apiclient"
	"expenses/internal/cli"
	"expenses/internal/log"
	"expenses/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, logger := cli.Bootstrap()

	if cfg.AMQPURL == "" {
		err := errors.New("AMQP_URL is required for the events worker")
		logger.Error("Invalid configuration", log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		return err
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	// the startup check reads through the public API; failures only skip it
	var lister worker.ExpenseLister
	if client, err := apiclient.New(cfg.APIBaseURL, apiclient.WithTimeout(cfg.APITimeout), apiclient.WithLogger(logger)); err == nil {
		lister = client
	}
	audit := worker.NewAuditWorker(logger, lister)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := audit.StartupCheck(ctx); err != nil {
		logger.Warn("Startup check failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeWithRetry(gctx, audit.HandleEvent)
	})

	logger.Info("Starting expense events worker",
		log.FieldOperation, log.OpStartup,
		"queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		return err
	}

	stats := audit.Stats()
	logger.Info("Worker shutdown complete",
		"created", stats.Created,
		"deleted", stats.Deleted)
	return nil
}
