// Package bootstrap provides dependency initialization for mediaops.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/mediaops/internal/assistant"
	"github.com/maauso/mediaops/internal/config"
	"github.com/maauso/mediaops/internal/job"
	"github.com/maauso/mediaops/internal/media"
	"github.com/maauso/mediaops/internal/storage"
)

// Dependencies holds all initialized dependencies for the server and the CLI.
type Dependencies struct {
	Processor *media.FFmpegProcessor
	Storage   storage.Storage
	Jobs      job.Repository
	Service   *job.Service

	closers []func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media processor
	processor := NewProcessor(cfg, logger)

	// Initialize job repository
	deps := &Dependencies{
		Processor: processor,
		Storage:   store,
	}
	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Jobs = repo
	if c, ok := repo.(interface{ Close() error }); ok {
		deps.closers = append(deps.closers, c.Close)
	}

	svc := job.NewService(repo, processor, store, logger)
	svc.SetMaxConcurrentJobs(cfg.MaxConcurrentJobs)
	deps.Service = svc

	return deps, nil
}

// Close releases resources held by the dependencies, such as the job database.
func (d *Dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewProcessor builds the ffmpeg-backed processor from configuration.
func NewProcessor(cfg *config.Config, logger *slog.Logger) *media.FFmpegProcessor {
	return media.NewFFmpegProcessor(cfg.MediaSettings(), media.WithLogger(logger))
}

// NewCoordinator wires an Ollama-backed chat coordinator with the built-in tools.
func NewCoordinator(cfg *config.Config, logger *slog.Logger) (*assistant.Coordinator, error) {
	client, err := assistant.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel)
	if err != nil {
		return nil, fmt.Errorf("create Ollama client: %w", err)
	}
	registry := assistant.NewRegistry(assistant.DefaultTools(cfg.WeatherBaseURL)...)
	return assistant.NewCoordinator(client, registry, assistant.WithLogger(logger)), nil
}

// initRepository opens the SQLite job store when DB_PATH is set and falls
// back to an in-memory store otherwise.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if cfg.DBPath == "" {
		logger.Info("job store configured", slog.String("backend", "memory"))
		return job.NewMemoryRepository(job.WithRetention(cfg.MaxRetainedJobs)), nil
	}

	repo, err := job.NewSQLiteRepository(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	logger.Info("job store configured",
		slog.String("backend", "sqlite"),
		slog.String("path", cfg.DBPath),
	)
	return repo, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(context.Background(), cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
