package handler

import (
	"clarity-storefront/internal/adapter/http/dto"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"
	"clarity-storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler issues storefront sessions.
type SessionHandler struct {
	tokens ports.TokenService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(tokens ports.TokenService) *SessionHandler {
	return &SessionHandler{tokens: tokens}
}

// Create handles POST /api/v1/sessions. Every call starts a new, empty session.
func (h *SessionHandler) Create(c *gin.Context) {
	sessionID := uuid.New()
	token, expiresAt, err := h.tokens.Generate(sessionID)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.Created(c, dto.SessionResponse{
		Token:     token,
		SessionID: sessionID.String(),
		ExpiresAt: expiresAt.Unix(),
	})
}
