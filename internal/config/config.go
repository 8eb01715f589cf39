// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Captcha modes for the login endpoint.
const (
	CaptchaModeOff    = "off"
	CaptchaModeAlways = "always"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode            string        `mapstructure:"GIN_MODE"`
	ServerHost         string        `mapstructure:"SERVER_HOST"`
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	ServerTimeout      time.Duration `mapstructure:"-"`
	CORSAllowedOrigins []string      `mapstructure:"-"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"-"`
	DBSource          string        `mapstructure:"DB_SOURCE"`
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWT / Sessions
	JWTSecretKey                string        `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer                   string        `mapstructure:"JWT_ISSUER"`
	JWTAccessTokenExpiryMinutes time.Duration `mapstructure:"-"`
	JWTRefreshTokenExpiryDays   time.Duration `mapstructure:"-"`
	BcryptCost                  int           `mapstructure:"BCRYPT_COST"`

	// Login protection
	LoginMaxFailedAttempts int           `mapstructure:"LOGIN_MAX_FAILED_ATTEMPTS"`
	LoginLockoutDuration   time.Duration `mapstructure:"-"`
	LoginCaptchaMode       string        `mapstructure:"LOGIN_CAPTCHA_MODE"`

	// Rate limiting (token bucket in Redis)
	RateLimitEnabled        bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitCapacity       int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRefillTokens   int           `mapstructure:"RATE_LIMIT_REFILL_TOKENS"`
	RateLimitRefillInterval time.Duration `mapstructure:"-"`
	RateLimitKeyStrategy    string        `mapstructure:"RATE_LIMIT_KEY_STRATEGY"`
	RateLimitPrefix         string        `mapstructure:"RATE_LIMIT_PREFIX"`

	// Redis (optional, empty address disables)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// RabbitMQ (optional)
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	LoginEventsQueue string `mapstructure:"LOGIN_EVENTS_QUEUE"`

	// Elasticsearch Configuration (optional)
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`
	LoginLogsIndex   string `mapstructure:"LOGIN_LOGS_INDEX"`

	// Firebase Configuration (optional)
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Music generation
	MusicOutputDir            string        `mapstructure:"MUSIC_OUTPUT_DIR"`
	MusicSoundfontPath        string        `mapstructure:"MUSIC_SOUNDFONT_PATH"`
	MusicRenderCommand        string        `mapstructure:"MUSIC_RENDER_COMMAND"`
	MusicRenderTimeout        time.Duration `mapstructure:"-"`
	MusicMaxConcurrentRenders int           `mapstructure:"MUSIC_MAX_CONCURRENT_RENDERS"`
	MusicFileTTL              time.Duration `mapstructure:"-"`

	// Cron Jobs
	SessionCleanupJobSchedule string        `mapstructure:"SESSION_CLEANUP_JOB_SCHEDULE"`
	MusicCleanupJobSchedule   string        `mapstructure:"MUSIC_CLEANUP_JOB_SCHEDULE"`
	LoginLogRetention         time.Duration `mapstructure:"-"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "music_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ISSUER", "music_backend")
	v.SetDefault("JWT_ACCESS_TOKEN_EXPIRY_MINUTES", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_EXPIRY_DAYS", 14)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)

	v.SetDefault("LOGIN_MAX_FAILED_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT_MINUTES", 15)
	v.SetDefault("LOGIN_CAPTCHA_MODE", CaptchaModeOff)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL_SECONDS", 6)
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_route")
	v.SetDefault("RATE_LIMIT_PREFIX", "rl")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOGIN_EVENTS_QUEUE", "user.login")

	v.SetDefault("ELASTICSEARCH_URL", "")
	v.SetDefault("LOGIN_LOGS_INDEX", "login_logs")

	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")

	v.SetDefault("MUSIC_OUTPUT_DIR", "./assets/music")
	v.SetDefault("MUSIC_SOUNDFONT_PATH", "./assets/soundfont.sf2")
	// e.g. fluidsynth -ni {soundfont} {midi} -F - | ffmpeg -y -i - {mp3}
	v.SetDefault("MUSIC_RENDER_COMMAND", "")
	v.SetDefault("MUSIC_RENDER_TIMEOUT_SECONDS", 120)
	v.SetDefault("MUSIC_MAX_CONCURRENT_RENDERS", 1)
	v.SetDefault("MUSIC_FILE_TTL_SECONDS", 100)

	v.SetDefault("SESSION_CLEANUP_JOB_SCHEDULE", "@hourly")
	v.SetDefault("MUSIC_CLEANUP_JOB_SCHEDULE", "@every 30s")
	v.SetDefault("LOGIN_LOG_RETENTION_DAYS", 90)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.JWTAccessTokenExpiryMinutes = time.Duration(v.GetInt("JWT_ACCESS_TOKEN_EXPIRY_MINUTES")) * time.Minute
	cfg.JWTRefreshTokenExpiryDays = time.Duration(v.GetInt("JWT_REFRESH_TOKEN_EXPIRY_DAYS")) * 24 * time.Hour
	cfg.LoginLockoutDuration = time.Duration(v.GetInt("LOGIN_LOCKOUT_MINUTES")) * time.Minute
	cfg.RateLimitRefillInterval = time.Duration(v.GetInt("RATE_LIMIT_REFILL_INTERVAL_SECONDS")) * time.Second
	cfg.LoginLogRetention = time.Duration(v.GetInt("LOGIN_LOG_RETENTION_DAYS")) * 24 * time.Hour
	cfg.MusicRenderTimeout = time.Duration(v.GetInt("MUSIC_RENDER_TIMEOUT_SECONDS")) * time.Second
	cfg.MusicFileTTL = time.Duration(v.GetInt("MUSIC_FILE_TTL_SECONDS")) * time.Second

	cfg.CORSAllowedOrigins = splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.LoginCaptchaMode = strings.ToLower(strings.TrimSpace(cfg.LoginCaptchaMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("FATAL: JWT_SECRET_KEY is not set")
	}
	if c.GinMode == "release" && len(c.JWTSecretKey) < 32 {
		return fmt.Errorf("FATAL: JWT_SECRET_KEY must be at least 32 characters in release mode")
	}
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected postgres, mysql or sqlite)", c.DBDriver)
	}
	switch c.LoginCaptchaMode {
	case CaptchaModeOff, CaptchaModeAlways:
	default:
		return fmt.Errorf("unsupported LOGIN_CAPTCHA_MODE %q (expected off or always)", c.LoginCaptchaMode)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.LoginMaxFailedAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_FAILED_ATTEMPTS must be positive")
	}
	if c.MusicMaxConcurrentRenders < 1 {
		return fmt.Errorf("MUSIC_MAX_CONCURRENT_RENDERS must be positive")
	}
	return nil
}

// CaptchaRequired reports whether the login endpoint demands a captcha answer.
func (c *Config) CaptchaRequired() bool {
	return c.LoginCaptchaMode == CaptchaModeAlways
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
