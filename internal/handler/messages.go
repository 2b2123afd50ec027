package handler

import (
	"net/http"
	"strconv"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MessageHandler interface {
	GetMessage(c *gin.Context)
}

type messageHandler struct {
	messageRepo repository.MessageRepository
	logger      *zap.Logger
}

func NewMessageHandler(messageRepo repository.MessageRepository, logger *zap.Logger) MessageHandler {
	return &messageHandler{messageRepo: messageRepo, logger: logger}
}

// GetMessage handles GET /api/messages/:type/:id and returns the scored message.
func (h *messageHandler) GetMessage(c *gin.Context) {
	msgType := models.MessageType(c.Param("type"))
	if !msgType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be post or comment"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	msg, err := h.messageRepo.GetMessage(models.MessageKey{Type: msgType, ID: id})
	if err != nil {
		h.logger.Error("Failed to get message", zap.String("type", string(msgType)), zap.Int64("message_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get message"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	c.JSON(http.StatusOK, msg)
}
