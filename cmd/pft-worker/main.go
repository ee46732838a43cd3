package main

import (
	"context"
	"errors"
	"os"
	"time"

	"pft/internal/amqp"
	"pft/internal/backend"
	"pft/internal/cli"
	"pft/internal/log"
	"pft/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	sink, err := backend.NewLedgerSink(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger sink", log.FieldError, err, "sink", cfg.LedgerSink)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
	})

	logger.Info("Starting pft-worker", "queue", cfg.AMQPQueue, "sink", cfg.LedgerSink)
	if err := worker.NewLedgerWorker(sink).Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
