package firebase

import (
	"context"
	"fmt"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"music_backend/internal/common"
	"music_backend/internal/config"
	"music_backend/internal/shared"
)

var errNotConfigured = common.ErrServiceUnavailable.WithMessage("Firebase login is not configured.")

// tokenVerifier is the part of *auth.Client the service needs.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Service verifies Firebase ID tokens. Without credentials it is a disabled
// service whose every call returns 503.
type Service struct {
	authClient tokenVerifier
	logger     *zap.Logger
}

var _ shared.IDTokenVerifier = (*Service)(nil)

// NewService initializes the Firebase Admin SDK when FIREBASE_SERVICE_ACCOUNT_KEY_PATH is set.
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	log := logger.Named("firebase")
	if cfg.FirebaseServiceAccountKeyPath == "" {
		log.Info("FIREBASE_SERVICE_ACCOUNT_KEY_PATH not set, Firebase login disabled")
		return &Service{logger: log}, nil
	}

	cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	opt := option.WithCredentialsFile(cleanPath)

	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebase.NewApp(context.Background(), conf, opt)
	if err != nil {
		log.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", cleanPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		log.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	log.Info("Firebase Admin SDK initialized successfully.")
	return &Service{authClient: authClient, logger: log}, nil
}

// Enabled reports whether tokens can be verified.
func (s *Service) Enabled() bool {
	return s.authClient != nil
}

// VerifyIDToken verifies a Firebase ID token and extracts the identity claims.
func (s *Service) VerifyIDToken(ctx context.Context, idToken string) (*shared.FederatedIdentity, error) {
	if !s.Enabled() {
		return nil, errNotConfigured
	}
	if idToken == "" {
		return nil, fmt.Errorf("ID token must not be empty")
	}

	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("Firebase ID token verification failed", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}

	s.logger.Debug("Firebase ID token verified successfully", zap.String("uid", token.UID))
	return identityFromToken(token), nil
}

func identityFromToken(token *auth.Token) *shared.FederatedIdentity {
	identity := &shared.FederatedIdentity{UID: token.UID}
	if v, ok := token.Claims["email"].(string); ok {
		identity.Email = v
	}
	if v, ok := token.Claims["email_verified"].(bool); ok {
		identity.EmailVerified = v
	}
	if v, ok := token.Claims["name"].(string); ok {
		identity.Name = v
	}
	return identity
}
