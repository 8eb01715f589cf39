// File: internal/auth/handler.go
package auth

import (
	"errors"

	"music_backend/internal/common"
	"music_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	sessions *SessionService
	logger   *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(sessions *SessionService, logger *zap.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes sets up the routes for authentication operations.
func (h *Handler) RegisterRoutes(router gin.IRouter, authMW gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/refresh", h.refreshToken)
		authGroup.POST("/logout", authMW, h.logout)
		authGroup.POST("/logout-all", authMW, h.logoutAll)
	}
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	tokenResponse, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Token refreshed successfully.", tokenResponse)
}

func (h *Handler) logout(c *gin.Context) {
	var req LogoutRequest
	if !h.bind(c, &req) {
		return
	}

	userID := common.GetUserIDFromContext(c)
	jti, exp := common.GetTokenIDFromContext(c)
	if err := h.sessions.Logout(c.Request.Context(), userID, req.RefreshToken, jti, exp); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}

func (h *Handler) logoutAll(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	jti, exp := common.GetTokenIDFromContext(c)
	if err := h.sessions.LogoutAll(c.Request.Context(), userID, jti, exp); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("Auth: Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Malformed request body."))
		return false
	}
	return true
}

func clientMeta(c *gin.Context) shared.ClientMeta {
	return shared.ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
