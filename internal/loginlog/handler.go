package loginlog

import (
	"music_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router gin.IRouter, authMW gin.HandlerFunc) {
	router.GET("/users/me/logins", authMW, h.listMine)
}

func (h *Handler) listMine(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}
	pq := common.GetPaginationParams(c)
	logs, pagination, err := h.service.ListForUser(c.Request.Context(), userID, pq)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Login history retrieved successfully.", logs, pagination)
}
