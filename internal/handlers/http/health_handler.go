package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lenslink/internal/infrastructure/monitoring"
	"lenslink/pkg/utils"
)

type HealthHandler struct {
	checker     *monitoring.HealthChecker
	connections func() int
	startTime   time.Time
}

// NewHealthHandler reports liveness and readiness. connections may be nil.
func NewHealthHandler(checker *monitoring.HealthChecker, connections func() int) *HealthHandler {
	return &HealthHandler{
		checker:     checker,
		connections: connections,
		startTime:   time.Now(),
	}
}

func (h *HealthHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    utils.FormatDuration(time.Since(h.startTime)),
	}
	if h.connections != nil {
		body["connections"] = h.connections()
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	if status.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
