// File: internal/auth/model.go
package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken is a persisted refresh session. Only the SHA-256 of the token is stored.
type RefreshToken struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID  `gorm:"type:char(36);not null;index"`
	TokenHash string     `gorm:"type:char(64);not null;uniqueIndex"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	RevokedAt *time.Time `gorm:"index"`
	IP        string     `gorm:"type:varchar(45)"`
	UserAgent string     `gorm:"type:varchar(255)"`
	CreatedAt time.Time  `gorm:"not null"`
}

// TableName specifies the table name for the RefreshToken model.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Usable reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// RefreshTokenRequest defines the structure for refresh token requests.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=256"`
}

// LogoutRequest names the refresh session to end.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=256"`
}
