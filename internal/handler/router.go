package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/middleware"
	"github.com/noah-isme/marksvault/internal/service"
	"github.com/noah-isme/marksvault/pkg/logger"
	corsmiddleware "github.com/noah-isme/marksvault/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/marksvault/pkg/middleware/requestid"
)

// Handlers groups the command surface.
type Handlers struct {
	Session  *SessionHandler
	Students *StudentHandler
	Modules  *ModuleHandler
	Imports  *ImportHandler
	Exports  *ExportHandler
	Metrics  *MetricsHandler
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableMetrics  bool
}

// NewRouter wires the command surface. Session routes stay reachable while locked; every
// data route answers 423 until the store is unlocked.
func NewRouter(h Handlers, session middleware.SessionChecker, metrics *service.MetricsService, log *zap.Logger, opts RouterOptions) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if opts.EnableMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(opts.APIPrefix)

	sessions := api.Group("/session")
	sessions.GET("", h.Session.Status)
	sessions.POST("/unlock", h.Session.Unlock)
	sessions.POST("/lock", h.Session.Lock)
	sessions.PUT("/password", h.Session.ChangePassword)

	data := api.Group("")
	data.Use(middleware.RequireUnlocked(session))

	students := data.Group("/students")
	students.GET("", h.Students.List)
	students.GET("/:id", h.Students.Get)
	students.GET("/:id/marks", h.Students.Marks)
	students.GET("/:id/results", h.Students.Results)
	students.POST("/:id/overrides", h.Students.Override)
	students.POST("/:id/reclassify", h.Students.Reclassify)

	modules := data.Group("/modules")
	modules.GET("", h.Modules.List)
	modules.POST("", h.Modules.Create)
	modules.PUT("/:code", h.Modules.Update)

	data.POST("/imports", h.Imports.Create)
	data.GET("/exports/awards", h.Exports.Awards)

	return r
}
