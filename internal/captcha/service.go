package captcha

import (
	"fmt"
	"strings"
	"time"

	"music_backend/internal/shared"

	"github.com/mojocn/base64Captcha"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Digit captcha geometry.
const (
	imageHeight = 80
	imageWidth  = 240
	digitCount  = 4
	maxSkew     = 0.7
	dotCount    = 80
	expiration  = 5 * time.Minute
)

// Service issues and verifies image captchas.
type Service struct {
	captcha *base64Captcha.Captcha
	store   base64Captcha.Store
	logger  *zap.Logger
}

var _ shared.CaptchaVerifier = (*Service)(nil)

// NewService uses a Redis store when a client is available, the library's memory store otherwise.
func NewService(rdb *goredis.Client, logger *zap.Logger) *Service {
	log := logger.Named("captcha")
	var store base64Captcha.Store
	if rdb != nil {
		store = NewRedisStore(rdb, expiration, log)
	} else {
		store = base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, expiration)
	}
	return NewServiceWithStore(store, log)
}

// NewServiceWithStore builds a service on an explicit store.
func NewServiceWithStore(store base64Captcha.Store, logger *zap.Logger) *Service {
	driver := base64Captcha.NewDriverDigit(imageHeight, imageWidth, digitCount, maxSkew, dotCount)
	return &Service{
		captcha: base64Captcha.NewCaptcha(driver, store),
		store:   store,
		logger:  logger,
	}
}

// Generate creates a captcha and returns its id and a base64 PNG data URI.
func (s *Service) Generate() (id, image string, err error) {
	id, image, _, err = s.captcha.Generate()
	if err != nil {
		return "", "", fmt.Errorf("generate captcha: %w", err)
	}
	return id, image, nil
}

// Verify checks answer and always consumes the captcha.
func (s *Service) Verify(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return s.store.Verify(id, strings.TrimSpace(answer), true)
}
