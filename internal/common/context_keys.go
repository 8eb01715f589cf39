// File: internal/common/context_keys.go
package common

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "Bearer"
	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-ID"
	// UserIDKey is the context key for storing the authenticated user's ID
	UserIDKey = "userID"
	// UserEmailKey is the context key for storing the authenticated user's email
	UserEmailKey = "userEmail"
	// UserRoleKey is the context key for storing the authenticated user's role
	UserRoleKey = "userRole"
	// TokenIDKey is the context key for the access token's jti
	TokenIDKey = "tokenID"
	// TokenExpiresAtKey is the context key for the access token's expiry
	TokenExpiresAtKey = "tokenExpiresAt"
	// RequestIDKey is the context key for the request id
	RequestIDKey = "requestID"
	// LoggerKey is the context key for the request scoped logger
	LoggerKey = "logger"
)
