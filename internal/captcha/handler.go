package captcha

import (
	"music_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GenerateResponse is the body of GET /captcha.
type GenerateResponse struct {
	CaptchaID string `json:"captcha_id"`
	Captcha   string `json:"captcha"`
}

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router gin.IRouter, limiter gin.HandlerFunc) {
	router.GET("/captcha", limiter, h.generate)
}

func (h *Handler) generate(c *gin.Context) {
	id, image, err := h.service.Generate()
	if err != nil {
		h.logger.Error("Captcha generation failed", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	common.RespondOK(c, "", GenerateResponse{CaptchaID: id, Captcha: image})
}
