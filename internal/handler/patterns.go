package handler

import (
	"errors"
	"net/http"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PatternHandler interface {
	GetPatterns(c *gin.Context)
	UpdatePatternStatus(c *gin.Context)
}

type patternHandler struct {
	patternRepo repository.PatternRepository
	logger      *zap.Logger
}

func NewPatternHandler(patternRepo repository.PatternRepository, logger *zap.Logger) PatternHandler {
	return &patternHandler{patternRepo: patternRepo, logger: logger}
}

// GetPatterns handles GET /api/patterns
// Query parameters:
// - status: active, investigating, resolved or false_positive (optional)
func (h *patternHandler) GetPatterns(c *gin.Context) {
	status := models.PatternStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: active, investigating, resolved, false_positive"})
		return
	}

	patterns, err := h.patternRepo.GetPatterns(status)
	if err != nil {
		h.logger.Error("Failed to get patterns", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve patterns"})
		return
	}
	if patterns == nil {
		patterns = []*models.SuspiciousPattern{}
	}

	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

// UpdateStatusRequest is the body of PUT /api/patterns/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdatePatternStatus handles PUT /api/patterns/:id/status
func (h *patternHandler) UpdatePatternStatus(c *gin.Context) {
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind JSON for status update", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.PatternStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: active, investigating, resolved, false_positive"})
		return
	}

	if err := h.patternRepo.UpdatePatternStatus(id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pattern not found"})
			return
		}
		h.logger.Error("Failed to update pattern status", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update pattern status"})
		return
	}

	h.logger.Info("Pattern status updated",
		zap.String("id", id),
		zap.String("status", req.Status),
		zap.String("operator", c.GetString("operator")))
	c.JSON(http.StatusOK, gin.H{"message": "Pattern status updated successfully"})
}
