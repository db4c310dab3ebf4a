package main

import (
	"context"
	"errors"
	"io"
	"os"

	"faturas/internal/amqp"
	"faturas/internal/cli"
	"faturas/internal/log"
	"faturas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// Logs go to stderr so the journal can own stdout.
	logger := cli.SetupLogger(log.ComponentAMQP, os.Stderr)
	logger.Info("Starting faturas-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.EventsFile != "" {
		f, err := os.OpenFile(cfg.EventsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("Failed to open events file", log.FieldError, err.Error(), log.FieldPath, cfg.EventsFile)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	events := worker.NewEventWorker(out, logger)
	err = amqpClient.ConsumeDocumentDownloaded(ctx, func(msg *amqp.DocumentDownloadedMessage) error {
		return events.HandleDocumentDownloaded(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", "journaled", events.Written())
}
