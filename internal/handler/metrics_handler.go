package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/marksvault/internal/service"
)

type unlockChecker interface {
	IsUnlocked() bool
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	store   unlockChecker
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, store unlockChecker) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, store: store}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness together with the session state. A locked store is still ready:
// the presentation layer unlocks it.
func (h *MetricsHandler) Ready(c *gin.Context) {
	unlocked := h.store != nil && h.store.IsUnlocked()
	c.JSON(http.StatusOK, gin.H{"status": "ready", "unlocked": unlocked})
}
