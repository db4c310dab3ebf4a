package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"faturas/internal/cli"
	"faturas/internal/config"
	"faturas/internal/fakeapi"
	"faturas/internal/log"
	"faturas/internal/sources/memory"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentAPI, os.Stdout)
	cfg := config.Load()

	port := os.Getenv("FAKE_API_PORT")
	if port == "" {
		port = "3000"
	}
	if _, err := memory.ReadFile(cfg.DataFile); err != nil {
		logger.Error("Failed to read fixture", log.FieldError, err.Error(), log.FieldPath, cfg.DataFile)
		os.Exit(1)
	}

	handler := fakeapi.Handler(memory.NewFromFile(cfg.DataFile, ""), fakeapi.Options{
		RecordsPath:   cfg.RecordsPath,
		DocumentsPath: cfg.DocumentsPath,
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           log.Middleware(logger)(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	}()

	logger.Info("Starting fake invoice API", "port", port, "data_file", cfg.DataFile)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
