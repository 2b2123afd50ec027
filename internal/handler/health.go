package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger checks the backing store.
type Pinger interface {
	Ping() error
}

// Watermark reports when data was last folded.
type Watermark interface {
	LastModified() time.Time
}

// MessageCounter reports the size of the message log.
type MessageCounter interface {
	CountMessages() (int64, error)
}

type HealthHandler interface {
	HealthCheck(c *gin.Context)
}

type healthHandler struct {
	db        Pinger
	messages  MessageCounter
	watermark Watermark
	logger    *zap.Logger
}

func NewHealthHandler(db Pinger, messages MessageCounter, watermark Watermark, logger *zap.Logger) HealthHandler {
	return &healthHandler{db: db, messages: messages, watermark: watermark, logger: logger}
}

// HealthCheck handles GET /health. A store outage degrades the status but the
// analytics views keep serving the in-memory state.
func (h *healthHandler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":       "ok",
		"database":     "up",
		"lastModified": h.watermark.LastModified(),
	}
	if err := h.db.Ping(); err != nil {
		h.logger.Warn("Health check could not reach the database", zap.Error(err))
		resp["status"] = "degraded"
		resp["database"] = "down"
		c.JSON(http.StatusOK, resp)
		return
	}

	if count, err := h.messages.CountMessages(); err != nil {
		h.logger.Warn("Health check could not count messages", zap.Error(err))
	} else {
		resp["messages"] = count
	}
	c.JSON(http.StatusOK, resp)
}
