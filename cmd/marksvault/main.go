package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/marksvault/api/swagger"
	"github.com/noah-isme/marksvault/internal/app"
	"github.com/noah-isme/marksvault/internal/handler"
	"github.com/noah-isme/marksvault/pkg/config"
	"github.com/noah-isme/marksvault/pkg/logger"
)

// @title marksvault API
// @version 1.0.0
// @description Local command surface over the encrypted student marks store.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	application, err := app.New(cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	application.Start(ctx)

	handlers := handler.Handlers{
		Session:  handler.NewSessionHandler(application.Sessions),
		Students: handler.NewStudentHandler(application.Students),
		Modules:  handler.NewModuleHandler(application.Modules),
		Imports: handler.NewImportHandler(application.Ingest, handler.ImportOptions{
			MaxFileBytes: cfg.Ingest.MaxFileBytes,
			UploadDir:    cfg.Ingest.UploadDir,
		}, logr.Named("imports")),
		Exports: handler.NewExportHandler(application.Exports),
		Metrics: handler.NewMetricsHandler(application.Metrics, application.Store),
	}
	r := handler.NewRouter(handlers, application.Store, application.Metrics, logr, handler.RouterOptions{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableMetrics:  cfg.Metrics.Enabled,
	})
	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: cfg.ShutdownTimeout}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("vault", cfg.Vault.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	if err := application.Close(cfg.ShutdownTimeout); err != nil {
		logr.Error("failed to seal vault on exit", zap.String("vault", cfg.Vault.Path), zap.Error(err))
	}
}
