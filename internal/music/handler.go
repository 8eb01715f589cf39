package music

import (
	"errors"
	"net/http"

	"music_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// GenerationIDHeader carries the id of the generation record for a download.
	GenerationIDHeader = "X-Music-ID"

	generationSucceeded = "music generation success"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the public generator. limiter guards POST /music.
func (h *Handler) RegisterRoutes(router gin.IRouter, limiter gin.HandlerFunc) {
	router.POST("/music", limiter, h.generate)
	router.GET("/music/generations/:id", h.getGeneration)
}

func (h *Handler) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid music request", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			h.fail(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		h.fail(c, common.ErrBadRequest.WithDetails("Malformed request body."))
		return
	}

	artifact, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	common.SetResultHeaders(c, true, http.StatusOK, generationSucceeded)
	c.Header(GenerationIDHeader, artifact.Generation.ID.String())
	c.Header("Content-Type", artifact.ContentType)
	c.FileAttachment(artifact.Path, artifact.Filename)
}

// fail mirrors the error into the result headers before writing the JSON error.
func (h *Handler) fail(c *gin.Context, err error) {
	apiErr, ok := common.IsAPIError(err)
	if !ok {
		apiErr = common.ErrInternalServer
	}
	common.SetResultHeaders(c, false, apiErr.StatusCode, apiErr.Message)
	common.RespondWithError(c, err)
}

func (h *Handler) getGeneration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid generation ID format."))
		return
	}
	gen, err := h.service.GetGeneration(c.Request.Context(), id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Music generation retrieved successfully.", gen)
}
