package handler

import (
	"net/http"

	"agentwatch/internal/metrics"
	"agentwatch/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyticsHandler interface {
	GetAgents(c *gin.Context)
	GetDailyActivity(c *gin.Context)
	GetTopTags(c *gin.Context)
	GetBehavior(c *gin.Context)
}

type analyticsHandler struct {
	cache  *metrics.Cache
	logger *zap.Logger
}

func NewAnalyticsHandler(cache *metrics.Cache, logger *zap.Logger) AnalyticsHandler {
	return &analyticsHandler{
		cache:  cache,
		logger: logger,
	}
}

// GetAgents handles GET /api/agents
// Query parameters:
// - sort: total_messages (default), posts or comments
// - limit: number of agents (default 20, max 500)
func (h *analyticsHandler) GetAgents(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20, 500)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	sortKey := models.ParseAgentSortKey(c.Query("sort"))

	agents := h.cache.TopAgents(limit, sortKey)
	c.JSON(http.StatusOK, gin.H{"agents": agents, "sort": sortKey})
}

// GetDailyActivity handles GET /api/analytics/daily?days=
// Days are UTC calendar days; the last bucket is today.
func (h *analyticsHandler) GetDailyActivity(c *gin.Context) {
	days, ok := queryInt(c, "days", 7, 365)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": h.cache.DailyActivity(days)})
}

// GetTopTags handles GET /api/analytics/tags?limit=
func (h *analyticsHandler) GetTopTags(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 10, 200)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": h.cache.TopTags(limit)})
}

// GetBehavior handles GET /api/analytics/behavior
func (h *analyticsHandler) GetBehavior(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.BehaviorDistribution())
}
