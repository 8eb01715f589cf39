package music

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"music_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMusicRouter(t *testing.T, renderer Renderer) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	common.RegisterValidators()

	svc := NewService(NewGORMRepository(newTestDB(t)), renderer, testConfig(t), zap.NewNop())
	router := gin.New()
	passThrough := func(c *gin.Context) { c.Next() }
	NewHandler(svc, zap.NewNop()).RegisterRoutes(router, passThrough)
	return router, svc
}

func postMusic(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/music", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_GenerateMP3(t *testing.T) {
	router, _ := newMusicRouter(t, &fileRenderer{})

	w := postMusic(router, `{"genre":"newage","mood":"happy","tempo":"slow"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "true", w.Header().Get(common.HeaderIsSuccess))
	assert.Equal(t, "200", w.Header().Get(common.HeaderCode))
	assert.Equal(t, "music generation success", w.Header().Get(common.HeaderMessage))
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="music.mp3"`)
	assert.NotEmpty(t, w.Header().Get(GenerationIDHeader))
	assert.Equal(t, "ID3", w.Body.String())
}

func TestHandler_GenerateMIDIAndLookup(t *testing.T) {
	router, _ := newMusicRouter(t, nil)

	w := postMusic(router, `{"genre":"retro","mood":"grand","tempo":"fast","seed":77,"format":"midi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("MThd")))

	id := w.Header().Get(GenerationIDHeader)
	lookup := httptest.NewRecorder()
	router.ServeHTTP(lookup, httptest.NewRequest(http.MethodGet, "/music/generations/"+id, nil))
	require.Equal(t, http.StatusOK, lookup.Code)

	var resp struct {
		Data GenerationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(lookup.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.ID.String())
	assert.Equal(t, int64(77), resp.Data.Seed)
	assert.Equal(t, 124, resp.Data.BPM)
	assert.Equal(t, FormatMIDI, resp.Data.Format)
}

func TestHandler_GenerateErrors(t *testing.T) {
	router, _ := newMusicRouter(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown genre", `{"genre":"jazz","mood":"happy","tempo":"slow"}`, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"missing tempo", `{"genre":"retro","mood":"sad"}`, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unknown format", `{"genre":"retro","mood":"sad","tempo":"slow","format":"ogg"}`, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"malformed", `{"genre":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"mp3 without renderer", `{"genre":"retro","mood":"sad","tempo":"slow"}`, http.StatusServiceUnavailable, "MUSIC_RENDERER_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postMusic(router, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var apiErr common.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, "false", w.Header().Get(common.HeaderIsSuccess))
			assert.Equal(t, apiErr.Message, w.Header().Get(common.HeaderMessage))
		})
	}
}

func TestHandler_RenderFailureHeaders(t *testing.T) {
	router, _ := newMusicRouter(t, &fileRenderer{err: assert.AnError})

	w := postMusic(router, `{"genre":"newage","mood":"sad","tempo":"moderate"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "false", w.Header().Get(common.HeaderIsSuccess))
	assert.Equal(t, "500", w.Header().Get(common.HeaderCode))
	assert.Equal(t, "music rendering fail", w.Header().Get(common.HeaderMessage))
}

func TestHandler_GetGenerationBadID(t *testing.T) {
	router, _ := newMusicRouter(t, nil)

	for path, want := range map[string]int{
		"/music/generations/not-a-uuid":                           http.StatusBadRequest,
		"/music/generations/6f1c1f0e-8a43-4a4f-a3f5-0e3f7d7e9b10": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
