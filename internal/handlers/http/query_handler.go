package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	apperrors "lenslink/pkg/errors"
	"lenslink/pkg/utils"
	"lenslink/pkg/validation"
)

// QueryHandler serves read-only views of history, devices and pairings.
type QueryHandler struct {
	history  ports.HistoryStore
	registry ports.DeviceRegistry
	pairs    ports.PairingStore
}

func NewQueryHandler(history ports.HistoryStore, registry ports.DeviceRegistry, pairs ports.PairingStore) *QueryHandler {
	return &QueryHandler{
		history:  history,
		registry: registry,
		pairs:    pairs,
	}
}

func (h *QueryHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.GET("/history", h.RecentHistory)
		api.GET("/history/:date", h.DayHistory)
		api.GET("/devices", h.ListDevices)
		api.GET("/pairs/:stableId", h.ListPairs)
	}
}

func (h *QueryHandler) RecentHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"records": h.history.Recent(),
	})
}

func (h *QueryHandler) DayHistory(c *gin.Context) {
	date := c.Param("date")
	if !utils.ValidDayKey(date) {
		c.Error(apperrors.NewInvalidInputError("date must be formatted as YYYY-MM-DD"))
		return
	}

	records, err := h.history.Day(c.Request.Context(), date)
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to read history", http.StatusInternalServerError))
		return
	}
	if records == nil {
		records = []domain.ScanRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"records": records,
	})
}

func (h *QueryHandler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices": h.registry.Snapshot(),
	})
}

func (h *QueryHandler) ListPairs(c *gin.Context) {
	stableID := c.Param("stableId")
	if err := validation.ValidateStableID(stableID); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	edges, err := h.pairs.EdgesOf(c.Request.Context(), domain.StableID(stableID))
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to read pairings", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stableId": stableID,
		"pairs":    edges,
	})
}
