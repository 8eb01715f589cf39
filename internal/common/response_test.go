package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondPaginated_KeepsEmptyData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondPaginated(c, "Nothing yet.", []string{}, NewPagination(0, 1, 20))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.JSONEq(t, `"success"`, string(body["status"]))
	assert.JSONEq(t, `[]`, string(body["data"]))
	assert.Contains(t, body, "pagination")
}

func TestSetResultHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetResultHeaders(c, false, http.StatusServiceUnavailable, "music rendering fail")
	c.Status(http.StatusServiceUnavailable)

	assert.Equal(t, "false", w.Header().Get(HeaderIsSuccess))
	assert.Equal(t, "503", w.Header().Get(HeaderCode))
	assert.Equal(t, "music rendering fail", w.Header().Get(HeaderMessage))
}
