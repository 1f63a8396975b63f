package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nl2sqlstudio/studio/internal/api"
	"github.com/nl2sqlstudio/studio/internal/api/uistatic"
	"github.com/nl2sqlstudio/studio/internal/auth"
	"github.com/nl2sqlstudio/studio/internal/config"
	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/nl2sql"
	"github.com/nl2sqlstudio/studio/internal/observability"
	"github.com/nl2sqlstudio/studio/internal/pipeline"
	"github.com/nl2sqlstudio/studio/internal/storage"
	s3store "github.com/nl2sqlstudio/studio/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("studio-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)
	logger.Info("config loaded", slog.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var objectStore storage.ObjectStore
	var objectStoreProbe func(context.Context) error
	if cfg.ObjectStore.Enabled {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = store
		objectStoreProbe = store.HealthCheck
	}

	translator, err := nl2sql.FromConfig(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}
	if translator == nil {
		logger.Warn("generation service not configured; questions will fail until STUDIO_AI_API_KEY is set")
	}

	source := datasource.Config{Dialect: cfg.DataSource.Dialect, DSN: cfg.DataSource.DSN}
	if cfg.DataSource.ObjectKey != "" {
		source, err = datasource.Fetch(ctx, objectStore, cfg.DataSource.ObjectKey, cfg.Upload.Dir, cfg.Upload.MaxBytes)
		if err != nil {
			logger.Error("failed to fetch database object", slog.String("key", cfg.DataSource.ObjectKey), slog.Any("error", err))
			os.Exit(1)
		}
	}

	sessions := pipeline.NewManager(pipeline.Options{
		Source:            source,
		Translator:        translator,
		RowLimit:          cfg.Query.RowLimit,
		GenerationTimeout: cfg.AI.Timeout,
		QueryTimeout:      cfg.Query.Timeout,
		AllowMutations:    cfg.Query.AllowMutations,
		PreviewRows:       cfg.DataSource.PreviewRows,
		Logger:            logger,
	})
	// A missing database is not fatal; one can be uploaded through the API.
	if _, err := sessions.Open(ctx); err != nil {
		logger.Warn("initial database not opened", slog.String("dsn", cfg.DataSource.DSN), slog.Any("error", err))
	}
	defer func() { _ = sessions.Close() }()

	deps := api.Dependencies{
		Logger:         logger,
		Sessions:       sessions,
		ObjectStore:    objectStore,
		UploadDir:      cfg.Upload.Dir,
		UploadMaxBytes: cfg.Upload.MaxBytes,
		UI:             uistatic.Handler(),
		Readiness: []api.ReadinessCheck{
			api.CheckSession(sessions),
			api.CheckObjectStore(objectStoreProbe),
		},
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.ParseStaticKeys(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
