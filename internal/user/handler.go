// File: internal/user/handler.go
package user

import (
	"errors"

	"music_backend/internal/common"
	"music_backend/internal/middleware"
	"music_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoginCompletedMessage is the message of a successful POST /users/login.
const LoginCompletedMessage = "Login completed."

// Handler struct holds dependencies for user handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routes for user operations.
// limiter guards the unauthenticated credential endpoints.
func (h *Handler) RegisterRoutes(router gin.IRouter, authMW, limiter gin.HandlerFunc) {
	userGroup := router.Group("/users")
	{
		userGroup.POST("", limiter, h.register)
		userGroup.POST("/login", limiter, h.login)
		userGroup.POST("/login/firebase", limiter, h.firebaseLogin)

		me := userGroup.Group("/me", authMW)
		{
			me.GET("", h.getMe)
			me.PATCH("/password", h.changePassword)
		}
	}

	adminGroup := router.Group("/admin", authMW, middleware.RoleAuthMiddleware(shared.RoleAdmin))
	{
		adminGroup.POST("/users/:id/unlock", h.unlock)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req LoginReq
	if !h.bind(c, &req) {
		return
	}

	usr, tokenResponse, err := h.service.Login(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, LoginCompletedMessage, AuthResult{User: shared.ToUserResponse(usr), Token: tokenResponse})
}

func (h *Handler) firebaseLogin(c *gin.Context) {
	var req FirebaseLoginRequest
	if !h.bind(c, &req) {
		return
	}

	usr, tokenResponse, err := h.service.FirebaseLogin(c.Request.Context(), req.IDToken, clientMeta(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, LoginCompletedMessage, AuthResult{User: shared.ToUserResponse(usr), Token: tokenResponse})
}

func (h *Handler) register(c *gin.Context) {
	var req CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	usr, tokenResponse, err := h.service.Register(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "User registered successfully.", AuthResult{User: shared.ToUserResponse(usr), Token: tokenResponse})
}

func (h *Handler) getMe(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		h.logger.Error("User ID not found in context for /me", zap.String("path", c.Request.URL.Path))
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}
	usr, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User profile retrieved successfully.", shared.ToUserResponse(usr))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), common.GetUserIDFromContext(c), req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Password changed successfully. Please sign in again on your other devices.", nil)
}

func (h *Handler) unlock(c *gin.Context) {
	paramID := c.Param("id")
	userID, err := uuid.Parse(paramID)
	if err != nil {
		h.logger.Warn("Invalid user ID format in URL parameter", zap.String("paramID", paramID), zap.Error(err))
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid user ID format."))
		return
	}
	usr, err := h.service.Unlock(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User unlocked successfully.", shared.ToUserResponse(usr))
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
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
