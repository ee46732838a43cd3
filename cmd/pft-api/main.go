package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pft/internal/amqp"
	"pft/internal/api"
	"pft/internal/cli"
	"pft/internal/core"
	"pft/internal/log"
	"pft/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAPI)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	demo := core.Profile{
		ID:              cfg.DemoUserID,
		Name:            "Demo User",
		Email:           "demo@example.com",
		ProfilePhotoURL: "/static/img/profile.svg",
	}
	if err := repo.Seed(context.Background(), demo); err != nil {
		logger.Error("Failed to seed demo user", log.FieldError, err, log.FieldUserID, demo.ID)
		os.Exit(1)
	}

	// A nil *amqp.Client must not end up inside the interface.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("Publishing finance events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	finance := services.NewFinanceService(repo, publisher, cfg.DemoUserID)
	srv := api.NewServer(":"+cfg.APIPort, finance, logger, api.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := finance.Close(); err != nil {
			logger.Error("Failed to close finance service", log.FieldError, err)
		}
	})

	logger.Info("Starting pft-api", "port", cfg.APIPort, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.APIPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
