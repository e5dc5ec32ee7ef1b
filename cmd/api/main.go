package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobarin/narrator/internal/api"
	"github.com/bobarin/narrator/internal/app"
	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/db"
	"github.com/bobarin/narrator/internal/deps"
	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/queue"
	"github.com/bobarin/narrator/internal/storage"
	"github.com/bobarin/narrator/internal/worker"
)

const workerConcurrency = 1

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return err
	}
	logger.Info("starting narrator api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		return err
	}
	logger.Info("connected to database")

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to queue", "error", err)
		return err
	}
	defer q.Close()
	logger.Info("connected to redis queue")

	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, logging.Component(logger, "storage"))
	var signer api.URLSigner
	if stor.Enabled() {
		signer = stor
		logger.Info("output uploads enabled", "bucket", stor.Bucket)
	} else {
		logger.Info("output uploads disabled, outputs stay on local disk")
	}

	handler := api.NewHandler(database, q, signer, logging.Component(logger, "api"))
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		Logger:             logging.Component(logger, "http"),
	})

	if cfg.BackendAPIKey == "" {
		logger.Warn("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.WorkerEnabled {
		if err := deps.Require(deps.MediaRequirements(cfg.FFmpegBinary, cfg.FFprobeBinary)); err != nil {
			logger.Error("worker cannot start", "error", err)
			return err
		}

		components, err := app.Build(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to build render pipeline", "error", err)
			return err
		}
		w := worker.New(database, q, stor, components.Runner(cfg, logger), cfg.MaxConcurrentUploads, logging.Component(logger, "worker"))

		g.Go(func() error {
			w.Start(gctx, workerConcurrency)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("api server listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		return err
	}
	logger.Info("server exited")
	return nil
}
