// File: internal/user/model.go
package user

import (
	"time"

	"music_backend/internal/common"
	"music_backend/internal/shared"

	"github.com/google/uuid"
)

// User represents the user model in the database.
type User struct {
	common.BaseModel
	Email            string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash     *string    `gorm:"type:varchar(255)"`
	Nickname         string     `gorm:"type:varchar(50);not null"`
	Handle           string     `gorm:"type:varchar(80);not null;uniqueIndex"`
	AuthProvider     string     `gorm:"type:varchar(50);not null;default:'email'"`
	FirebaseUID      *string    `gorm:"type:varchar(128);uniqueIndex"`
	IsEmailVerified  bool       `gorm:"not null;default:false"`
	Role             string     `gorm:"type:varchar(50);not null;default:'user'"`
	Status           string     `gorm:"type:varchar(20);not null;default:'active'"`
	FailedLoginCount int        `gorm:"not null;default:0"`
	LockedUntil      *time.Time
	LastLoginAt      *time.Time
	LastLoginIP      string `gorm:"type:varchar(45)"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsLocked reports whether the lockout window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// --- DTOs (Data Transfer Objects) for API requests/responses ---

// LoginReq is the body of POST /users/login.
type LoginReq struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,maxbytes=72"`
	CaptchaID   string `json:"captcha_id" binding:"max=64"`
	CaptchaCode string `json:"captcha_code" binding:"max=16"`
}

// CreateUserRequest defines the structure for creating a new user.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,password"`
	Nickname string `json:"nickname" binding:"required,min=1,max=50"`
}

// FirebaseLoginRequest carries a Firebase ID token from the client SDK.
type FirebaseLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// ChangePasswordRequest changes the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,maxbytes=72"`
	NewPassword     string `json:"new_password" binding:"required,password,nefield=CurrentPassword"`
}

// AuthResult is the payload returned by every endpoint that signs a user in.
type AuthResult struct {
	User  shared.UserResponse   `json:"user"`
	Token *shared.TokenResponse `json:"token"`
}

// ToShared converts a GORM user.User model to a shared.User DTO.
func ToShared(dbUser *User) *shared.User {
	if dbUser == nil {
		return nil
	}
	return &shared.User{
		ID:              dbUser.ID,
		Email:           dbUser.Email,
		Nickname:        dbUser.Nickname,
		Handle:          dbUser.Handle,
		Role:            dbUser.Role,
		Status:          dbUser.Status,
		AuthProvider:    dbUser.AuthProvider,
		IsEmailVerified: dbUser.IsEmailVerified,
		CreatedAt:       dbUser.CreatedAt,
		UpdatedAt:       dbUser.UpdatedAt,
		LastLoginAt:     dbUser.LastLoginAt,
	}
}

func (u *User) GetID() uuid.UUID {
	return u.ID
}

func (u *User) GetEmail() string {
	return u.Email
}

func (u *User) GetRole() string {
	return u.Role
}
