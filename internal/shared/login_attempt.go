package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Login methods.
const (
	LoginMethodPassword = "password"
	LoginMethodFirebase = "firebase"
)

// Login outcome reason codes.
const (
	LoginReasonSuccess         = "success"
	LoginReasonUserNotFound    = "user_not_found"
	LoginReasonAccountDisabled = "account_disabled"
	LoginReasonAccountLocked   = "account_locked"
	LoginReasonPasswordNotSet  = "password_not_set"
	LoginReasonInvalidPassword = "invalid_password"
	LoginReasonCaptchaInvalid  = "captcha_invalid"
	LoginReasonInvalidToken    = "invalid_token"
	LoginReasonInternalError   = "internal_error"
)

// LoginAttempt is one authentication attempt, successful or not.
type LoginAttempt struct {
	UserID     *uuid.UUID
	Email      string
	Method     string
	Success    bool
	Reason     string
	IP         string
	UserAgent  string
	OccurredAt time.Time
}

// LoginRecorder persists login attempts. Implementations must not fail the caller.
type LoginRecorder interface {
	Record(ctx context.Context, attempt LoginAttempt)
}

// FederatedIdentity is the verified content of a third-party ID token.
type FederatedIdentity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
}

// IDTokenVerifier verifies third-party ID tokens.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FederatedIdentity, error)
}
