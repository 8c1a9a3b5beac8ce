package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/whisperwall/internal/middleware"
	"github.com/whisperwall/internal/repository"
	"github.com/whisperwall/internal/service"
	"github.com/whisperwall/pkg/response"
)

// MessageHandler handles anonymous message intake and owner-side message
// API requests
type MessageHandler struct {
	messageService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// Send handles anonymous message submission
// POST /api/v1/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req service.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.messageService.Send(c.Request.Context(), req.Username, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.NotFound(c, "user not found")
		case errors.Is(err, service.ErrNotAcceptingMessages):
			response.Forbidden(c, "user is not accepting messages")
		case errors.Is(err, service.ErrEmptyContent):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrContentTooLong):
			response.BadRequest(c, fmt.Sprintf("message content exceeds %d characters", service.MaxMessageLength))
		default:
			response.InternalError(c, "failed to send message")
		}
		return
	}

	response.Success(c, "message sent successfully", nil)
}

// GetMessages returns the caller's messages, newest first
// GET /api/v1/users/me/messages
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messages, err := h.messageService.Messages(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.InternalError(c, "failed to get messages")
		return
	}

	response.Success(c, "messages retrieved", gin.H{"messages": messages})
}

// GetAcceptMessages returns the caller's acceptance flag
// GET /api/v1/users/me/accept-messages
func (h *MessageHandler) GetAcceptMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)

	accepting, err := h.messageService.AcceptingMessages(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.InternalError(c, "failed to get message acceptance status")
		return
	}

	response.Success(c, "message acceptance status retrieved", gin.H{"accept_messages": accepting})
}

// SetAcceptMessages updates the caller's acceptance flag
// POST /api/v1/users/me/accept-messages
func (h *MessageHandler) SetAcceptMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.UpdateAcceptanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	accepting, err := h.messageService.SetAcceptingMessages(c.Request.Context(), userID, *req.AcceptMessages)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.InternalError(c, "failed to update message acceptance status")
		return
	}

	response.Success(c, "message acceptance status updated", gin.H{"accept_messages": accepting})
}

// RegisterRoutes registers message routes. Sending is public; everything
// under /users/me requires authentication.
func (h *MessageHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.POST("/messages", h.Send)

	me := rg.Group("/users/me")
	me.Use(authMiddleware)
	{
		me.GET("/messages", h.GetMessages)
		me.GET("/accept-messages", h.GetAcceptMessages)
		me.POST("/accept-messages", h.SetAcceptMessages)
	}
}
