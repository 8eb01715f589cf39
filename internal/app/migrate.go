package app

import (
	"fmt"

	"music_backend/internal/auth"
	"music_backend/internal/loginlog"
	"music_backend/internal/music"
	"music_backend/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables the service owns.
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")
	if err := db.AutoMigrate(&user.User{}, &auth.RefreshToken{}, &loginlog.LoginLog{}, &music.Generation{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("Database migrations completed.")
	return nil
}
