package common

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const statusSuccess = "success"

// Result headers mirror the envelope for endpoints that answer with a file body.
const (
	HeaderIsSuccess = "isSuccess"
	HeaderCode      = "code"
	HeaderMessage   = "message"
)

// SuccessResponse is the envelope of every JSON success.
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PaginatedResponse always carries data, even when the page is empty.
type PaginatedResponse struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

// RespondWithError aborts with err as an *APIError. Anything else is logged and
// reported as a 500; the cause is only shown in debug mode.
func RespondWithError(c *gin.Context, err error) {
	apiErr, ok := IsAPIError(err)
	if !ok {
		GetLoggerFromContext(c, zap.NewNop()).Error("Unhandled internal error being wrapped", zap.Error(err))
		apiErr = ErrInternalServer
		if gin.Mode() == gin.DebugMode {
			apiErr = ErrInternalServer.WithDetails(err.Error())
		}
	}
	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
}

func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{Status: statusSuccess, Message: message, Data: data})
}

func RespondOK(c *gin.Context, message string, data interface{}) {
	RespondSuccess(c, http.StatusOK, message, data)
}

func RespondCreated(c *gin.Context, message string, data interface{}) {
	RespondSuccess(c, http.StatusCreated, message, data)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func RespondPaginated(c *gin.Context, message string, data interface{}, pagination *Pagination) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Status:     statusSuccess,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// SetResultHeaders writes the isSuccess/code/message triple.
func SetResultHeaders(c *gin.Context, success bool, code int, message string) {
	c.Header(HeaderIsSuccess, strconv.FormatBool(success))
	c.Header(HeaderCode, strconv.Itoa(code))
	c.Header(HeaderMessage, message)
}
