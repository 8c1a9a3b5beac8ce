package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/whisperwall/internal/service"
	"github.com/whisperwall/pkg/response"
)

// SuggestionHandler handles AI suggestion API requests
type SuggestionHandler struct {
	suggestionService *service.SuggestionService
}

// NewSuggestionHandler creates a new SuggestionHandler
func NewSuggestionHandler(suggestionService *service.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{
		suggestionService: suggestionService,
	}
}

// Suggest returns conversation starter questions
// GET /api/v1/suggest-messages
func (h *SuggestionHandler) Suggest(c *gin.Context) {
	suggestions, err := h.suggestionService.Suggest(c.Request.Context())
	if err != nil {
		response.BadGateway(c, "suggestion provider unavailable")
		return
	}

	response.Success(c, "suggestions retrieved", gin.H{"suggestions": suggestions})
}

// RegisterRoutes registers suggestion routes
func (h *SuggestionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/suggest-messages", h.Suggest)
}
