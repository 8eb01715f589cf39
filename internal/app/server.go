package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"music_backend/internal/auth"
	"music_backend/internal/captcha"
	"music_backend/internal/common"
	"music_backend/internal/config"
	"music_backend/internal/jobs"
	"music_backend/internal/loginlog"
	"music_backend/internal/middleware"
	"music_backend/internal/music"
	platformElasticsearch "music_backend/internal/platform/elasticsearch"
	"music_backend/internal/shared"
	"music_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers groups every route owner mounted on the router.
type Handlers struct {
	User     *user.Handler
	Auth     *auth.Handler
	Captcha  *captcha.Handler
	LoginLog *loginlog.Handler
	Music    *music.Handler
}

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	cleanupJob      *jobs.SessionCleanupJob
	musicCleanupJob *jobs.MusicCleanupJob
	loginLogs       *loginlog.Service

	// ESClient is nil when Elasticsearch is not configured.
	ESClient  *platformElasticsearch.ESClientWrapper
	AppLogger *zap.Logger
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	rdb *goredis.Client,
	esClient *platformElasticsearch.ESClientWrapper,
	handlers Handlers,
	tokenService shared.TokenService,
	blocklist auth.TokenBlocklistService,
	cleanupJob *jobs.SessionCleanupJob,
	musicCleanupJob *jobs.MusicCleanupJob,
	loginLogs *loginlog.Service,
) (*Server, error) {
	if cfg.DBAutoMigrate {
		if err := AutoMigrate(db, logger); err != nil {
			return nil, err
		}
	}

	authMW := middleware.AuthMiddleware(tokenService, blocklist, logger.Named("AuthMiddleware"))
	limiter := middleware.RateLimit(cfg, rdb, logger.Named("RateLimit"))
	router := NewRouter(cfg, logger, handlers, authMW, limiter)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	// Audio rendering holds the response open.
	writeTimeout := 15*time.Second + cfg.MusicRenderTimeout
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		router:          router,
		cfg:             cfg,
		logger:          logger,
		cleanupJob:      cleanupJob,
		musicCleanupJob: musicCleanupJob,
		loginLogs:       loginLogs,
		ESClient:        esClient,
		AppLogger:       logger,
	}, nil
}

// NewRouter builds the gin engine with global middleware and every route.
func NewRouter(cfg *config.Config, logger *zap.Logger, handlers Handlers, authMW, limiter gin.HandlerFunc) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	common.RegisterValidators()

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Music API is healthy!"})
	})

	handlers.User.RegisterRoutes(router, authMW, limiter)
	handlers.Auth.RegisterRoutes(router, authMW)
	handlers.Captcha.RegisterRoutes(router, limiter)
	handlers.LoginLog.RegisterRoutes(router, authMW)
	handlers.Music.RegisterRoutes(router, limiter)
	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", common.RequestIDHeader}
	corsCfg.ExposeHeaders = []string{
		"Content-Length", "Content-Disposition", "Retry-After", common.RequestIDHeader,
		common.HeaderIsSuccess, common.HeaderCode, common.HeaderMessage, music.GenerationIDHeader,
	}

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	return corsCfg
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.cleanupJob != nil {
		if err := s.cleanupJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start session cleanup job", zap.Error(err))
		}
	} else {
		s.logger.Info("Session cleanup job is not configured, skipping start.")
	}
	if s.musicCleanupJob != nil {
		if err := s.musicCleanupJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start music cleanup job", zap.Error(err))
		}
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.cleanupJob != nil {
		s.cleanupJob.Stop()
	}
	if s.musicCleanupJob != nil {
		s.musicCleanupJob.Stop()
	}
	err := s.httpServer.Shutdown(ctx)
	if s.loginLogs != nil {
		s.loginLogs.Wait()
	}
	return err
}
