package handler

import (
	"net/http"
	"strconv"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GrowthHandler interface {
	GetGrowth(c *gin.Context)
}

type growthHandler struct {
	growthRepo repository.GrowthRepository
	logger     *zap.Logger
}

func NewGrowthHandler(growthRepo repository.GrowthRepository, logger *zap.Logger) GrowthHandler {
	return &growthHandler{growthRepo: growthRepo, logger: logger}
}

// GetGrowth handles GET /api/growth?organic=true|false
func (h *growthHandler) GetGrowth(c *gin.Context) {
	var organic *bool
	if raw := c.Query("organic"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "organic must be true or false"})
			return
		}
		organic = &v
	}

	snapshots, err := h.growthRepo.GetSnapshots(organic)
	if err != nil {
		h.logger.Error("Failed to get growth snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve growth snapshots"})
		return
	}
	if snapshots == nil {
		snapshots = []*models.DailyGrowthSnapshot{}
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}
