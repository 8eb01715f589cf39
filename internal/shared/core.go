package shared

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Auth providers.
const (
	ProviderEmail    = "email"
	ProviderFirebase = "firebase"
)

// User represents a user in the system.
type User struct {
	ID              uuid.UUID
	Email           string
	Nickname        string
	Handle          string
	Role            string
	Status          string
	AuthProvider    string
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLoginAt     *time.Time
}

func (u *User) GetID() uuid.UUID { return u.ID }
func (u *User) GetEmail() string { return u.Email }
func (u *User) GetRole() string  { return u.Role }

// TokenResponse represents the response containing JWT tokens.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// UserDataForToken is an interface to abstract the user data needed for token generation.
type UserDataForToken interface {
	GetID() uuid.UUID
	GetEmail() string
	GetRole() string
}

// Claims represents the JWT claims structure
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenService defines the interface for JWT operations.
type TokenService interface {
	GenerateAccessToken(userData UserDataForToken) (string, time.Time, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// ClientMeta describes where a request came from.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// SessionIssuer creates and revokes refresh-token sessions.
type SessionIssuer interface {
	IssueSession(ctx context.Context, userData UserDataForToken, meta ClientMeta) (*TokenResponse, error)
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) error
}

// UserProvider is the read side of the user store that other packages need.
type UserProvider interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// CaptchaVerifier checks a captcha answer. Every call consumes the captcha.
type CaptchaVerifier interface {
	Verify(id, answer string) bool
}
