package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/engine"
	"github.com/noah-isme/marksvault/internal/ingest"
	"github.com/noah-isme/marksvault/internal/policy"
	"github.com/noah-isme/marksvault/internal/service"
	"github.com/noah-isme/marksvault/internal/store"
	"github.com/noah-isme/marksvault/pkg/config"
	"github.com/noah-isme/marksvault/pkg/jobs"
)

// App holds the wired object graph shared by the server and the command-line tool.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Policies *policy.Registry
	Store    *store.Store
	Engine   *engine.Engine
	Metrics  *service.MetricsService
	Queue    *jobs.Queue

	Sessions  *service.SessionService
	Students  *service.StudentService
	Modules   *service.ModuleService
	Recompute *service.RecomputeService
	Ingest    *service.IngestService
	Exports   *service.ExportService
}

// New builds the application. With Recompute.Workers set to zero no queue is created and
// module changes recompute inline.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry, err := policy.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("build policy registry: %w", err)
	}
	if cfg.Policy.File != "" {
		n, err := registry.LoadFile(cfg.Policy.File)
		if err != nil {
			return nil, err
		}
		logger.Info("policy file loaded", zap.String("path", cfg.Policy.File), zap.Int("models", n))
	}
	if cfg.Policy.DefaultCalcModel != "" {
		if _, err := registry.Lookup(cfg.Policy.DefaultCalcModel); err != nil {
			return nil, fmt.Errorf("default calculation model: %w", err)
		}
	}

	a := &App{Config: cfg, Logger: logger, Policies: registry}
	a.Store = store.New(store.Config{
		VaultPath:    cfg.Vault.Path,
		WorkDir:      cfg.Vault.WorkDir,
		Iterations:   cfg.Vault.KDFIterations,
		MaxOpenConns: cfg.Vault.MaxOpenConns,
	}, logger.Named("store"))
	a.Engine = engine.New(registry)
	a.Metrics = service.NewMetricsService()

	validate := validator.New()
	a.Recompute = service.NewRecomputeService(a.Store, a.Engine, a.Metrics, logger.Named("recompute"))
	a.Sessions = service.NewSessionService(a.Store, a.Metrics, validate, logger.Named("session"))
	a.Students = service.NewStudentService(a.Store, a.Recompute, validate, logger.Named("students"))
	a.Exports = service.NewExportService(a.Store, nil, nil, logger.Named("export"))

	ingestCfg := service.IngestConfig{Workers: cfg.Ingest.Workers, DefaultCalcModel: cfg.Policy.DefaultCalcModel}
	normalizer := ingest.NewNormalizer(logger.Named("ingest"))
	if cfg.Recompute.Workers > 0 {
		a.Queue = jobs.NewQueue("recompute", a.Recompute.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Recompute.Workers,
			MaxRetries: cfg.Recompute.Retries,
			RetryDelay: cfg.Recompute.RetryDelay,
			Logger:     logger.Named("queue"),
		})
		a.Modules = service.NewModuleService(a.Store, a.Recompute, a.Queue, validate, logger.Named("modules"))
		a.Ingest = service.NewIngestService(a.Store, normalizer, a.Recompute, a.Queue, a.Metrics, ingestCfg, validate, logger.Named("ingest"))
	} else {
		a.Modules = service.NewModuleService(a.Store, a.Recompute, nil, validate, logger.Named("modules"))
		a.Ingest = service.NewIngestService(a.Store, normalizer, a.Recompute, nil, a.Metrics, ingestCfg, validate, logger.Named("ingest"))
	}
	return a, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Start(ctx)
	}
}

// Close drains pending recomputes within timeout, stops workers and seals the store.
func (a *App) Close(timeout time.Duration) error {
	if a.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.Queue.Drain(ctx); err != nil {
			a.Logger.Warn("recompute queue not drained", zap.Int("pending", a.Queue.Pending()), zap.Error(err))
		}
		cancel()
		a.Queue.Stop()
	}
	return a.Store.Lock()
}
