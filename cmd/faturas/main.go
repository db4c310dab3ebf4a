package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"faturas/internal/backend"
	"faturas/internal/cache"
	"faturas/internal/cli"
	"faturas/internal/dashboard"
	"faturas/internal/documents"
	apphttp "faturas/internal/http"
	"faturas/internal/log"
	"faturas/internal/metrics"
	"faturas/internal/records"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp, os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	metrics.Init()

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	// A failed first load leaves the store empty; the UI shows the error
	// and /api/reload can retry.
	store := records.NewStore(result.Backend.Records, logger)
	if _, err := store.Load(ctx); err != nil {
		logger.Error("Initial record load failed", log.FieldError, err.Error())
	}

	caches := cache.NewManager(logger)
	views := cache.NewLRUCache[dashboard.View](64, 10*time.Minute)
	caches.Register(views)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Store:              store,
		Querier:            result.Backend.Accounts,
		Downloader:         documents.NewDownloader(result.Backend.Documents, result.Backend.Notifier, logger),
		Views:              views,
		Caches:             caches,
		SessionTTL:         cfg.SessionTTL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting faturas server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
