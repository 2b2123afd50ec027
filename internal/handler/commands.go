package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agentwatch/internal/metrics"
	"agentwatch/internal/models"
	"agentwatch/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ingester accepts raw message batches.
type Ingester interface {
	Ingest(ctx context.Context, batch []models.RawMessage) (pipeline.BatchResult, error)
}

// DetectionRunner runs pattern detection on demand.
type DetectionRunner interface {
	RunDetection(ctx context.Context, windowEnd time.Time) []*models.SuspiciousPattern
}

type CommandHandler interface {
	Ingest(c *gin.Context)
	RunDetection(c *gin.Context)
	ReloadCache(c *gin.Context)
}

type commandHandler struct {
	ingester Ingester
	detector DetectionRunner
	cache    *metrics.Cache
	logger   *zap.Logger
}

func NewCommandHandler(ingester Ingester, detector DetectionRunner, cache *metrics.Cache, logger *zap.Logger) CommandHandler {
	return &commandHandler{
		ingester: ingester,
		detector: detector,
		cache:    cache,
		logger:   logger,
	}
}

// IngestRequest is the body of POST /api/ingest
type IngestRequest struct {
	Messages []models.RawMessage `json:"messages" binding:"required"`
}

// Ingest handles POST /api/ingest
func (h *commandHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind JSON for ingest", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.ingester.Ingest(c.Request.Context(), req.Messages)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "A collection run is already in progress"})
			return
		}
		h.logger.Error("Failed to ingest batch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest batch", "result": result})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// RunDetection handles POST /api/detection/run
func (h *commandHandler) RunDetection(c *gin.Context) {
	patterns := h.detector.RunDetection(c.Request.Context(), time.Now())
	if patterns == nil {
		patterns = []*models.SuspiciousPattern{}
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

// ReloadCache handles POST /api/cache/reload
func (h *commandHandler) ReloadCache(c *gin.Context) {
	h.cache.Invalidate()
	h.cache.Refresh()
	c.JSON(http.StatusOK, gin.H{"message": "Metrics cache reloaded"})
}
