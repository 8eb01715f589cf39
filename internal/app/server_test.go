package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"music_backend/internal/auth"
	"music_backend/internal/captcha"
	"music_backend/internal/config"
	"music_backend/internal/firebase"
	"music_backend/internal/jobs"
	"music_backend/internal/loginlog"
	"music_backend/internal/music"
	"music_backend/internal/platform/database"
	"music_backend/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		GinMode:                     "test",
		CORSAllowedOrigins:          []string{"*"},
		DBDriver:                    "sqlite",
		DBSource:                    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		DBAutoMigrate:               true,
		LogLevel:                    "silent",
		JWTSecretKey:                "integration-secret-key-integration-secret",
		JWTIssuer:                   "music_backend",
		JWTAccessTokenExpiryMinutes: 15 * time.Minute,
		JWTRefreshTokenExpiryDays:   24 * time.Hour,
		BcryptCost:                  bcrypt.MinCost,
		LoginMaxFailedAttempts:      2,
		LoginLockoutDuration:        15 * time.Minute,
		LoginCaptchaMode:            config.CaptchaModeOff,
		LoginLogsIndex:              "login_logs",
		LoginLogRetention:           90 * 24 * time.Hour,
		MusicMaxConcurrentRenders:   1,
		MusicFileTTL:                100 * time.Second,
	}
}

// newTestServer assembles the same graph as the wire injector, without Redis,
// Elasticsearch, RabbitMQ or Firebase.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	cfg.MusicOutputDir = t.TempDir()
	logger := zap.NewNop()

	db, err := database.NewGORM(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseGORMDB(db, logger) })

	userRepo := user.NewGORMRepository(db)
	tokenService := auth.NewJWTService(cfg, logger)
	blocklist := auth.NewBlocklistService(cfg, nil, logger)
	sessions := auth.NewSessionService(auth.NewGORMRefreshTokenRepository(db), tokenService, blocklist, user.NewDirectory(userRepo), cfg, logger)
	loginLogs := loginlog.NewService(loginlog.NewGORMRepository(db), nil, nil, cfg, logger)
	captchaService := captcha.NewService(nil, logger)
	firebaseService, err := firebase.NewService(cfg, logger)
	require.NoError(t, err)
	userService := user.NewService(userRepo, sessions, loginLogs, captchaService, firebaseService, cfg, logger)
	musicService := music.NewService(music.NewGORMRepository(db), music.NewRenderer(cfg, logger), cfg, logger)

	handlers := Handlers{
		User:     user.NewHandler(userService, logger),
		Auth:     auth.NewHandler(sessions, logger),
		Captcha:  captcha.NewHandler(captchaService, logger),
		LoginLog: loginlog.NewHandler(loginLogs, logger),
		Music:    music.NewHandler(musicService, logger),
	}
	job := jobs.NewSessionCleanupJob(sessions, loginLogs, jobs.NewLocker(nil, logger), logger, cfg)
	musicJob := jobs.NewMusicCleanupJob(musicService, logger, cfg)

	server, err := NewServer(cfg, logger, db, nil, nil, handlers, tokenService, blocklist, job, musicJob, loginLogs)
	require.NoError(t, err)
	return server.Handler()
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.Handler, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

type authData struct {
	User struct {
		ID     uuid.UUID `json:"id"`
		Handle string    `json:"handle"`
	} `json:"user"`
	Token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"token"`
}

func TestServer_LoginFlow(t *testing.T) {
	h := newTestServer(t)

	status, env := call(t, h, http.MethodPost, "/users", "", map[string]string{
		"email": "Fan@Example.com", "password": "correct-horse", "nickname": "Night Owl",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env = call(t, h, http.MethodPost, "/users/login", "", map[string]string{
		"email": "fan@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, user.LoginCompletedMessage, env.Message)

	var login authData
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, "night-owl", login.User.Handle)
	require.NotEmpty(t, login.Token.AccessToken)

	status, _ = call(t, h, http.MethodGet, "/users/me", login.Token.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = call(t, h, http.MethodGet, "/users/me/logins", login.Token.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	var history []loginlog.Response
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)

	status, env = call(t, h, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": login.Token.RefreshToken})
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, h, http.MethodPost, "/auth/logout-all", login.Token.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, h, http.MethodGet, "/users/me", login.Token.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_LoginLockout(t *testing.T) {
	h := newTestServer(t)
	status, _ := call(t, h, http.MethodPost, "/users", "", map[string]string{
		"email": "fan@example.com", "password": "correct-horse", "nickname": "Fan",
	})
	require.Equal(t, http.StatusCreated, status)

	for i := 0; i < 2; i++ {
		status, env := call(t, h, http.MethodPost, "/users/login", "", map[string]string{
			"email": "fan@example.com", "password": "wrong-horse",
		})
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "UNAUTHORIZED", env.Code)
	}

	status, env := call(t, h, http.MethodPost, "/users/login", "", map[string]string{
		"email": "fan@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, "ACCOUNT_LOCKED", env.Code)
}

func TestServer_Routing(t *testing.T) {
	h := newTestServer(t)

	status, _ := call(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := call(t, h, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)

	status, _ = call(t, h, http.MethodGet, "/users/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, env = call(t, h, http.MethodPost, "/users/login/firebase", "", map[string]string{"id_token": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = call(t, h, http.MethodGet, "/captcha", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_Music(t *testing.T) {
	h := newTestServer(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/music", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := post(`{"genre":"retro","mood":"happy","tempo":"moderate","format":"midi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Header().Get("isSuccess"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("MThd")))

	status, env := call(t, h, http.MethodGet, "/music/generations/"+w.Header().Get(music.GenerationIDHeader), "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"succeeded"`)

	// No render command is configured in tests.
	w = post(`{"genre":"newage","mood":"sad","tempo":"slow"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "false", w.Header().Get("isSuccess"))
	assert.Equal(t, "503", w.Header().Get("code"))
}
