package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"music_backend/internal/common"
	"music_backend/internal/config"
	"music_backend/internal/platform/crypto"
	"music_backend/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const refreshTokenBytes = 48

var errInvalidRefreshToken = common.ErrUnauthorized.WithMessage("Invalid or expired refresh token.")

// SessionService issues and revokes refresh-token sessions.
type SessionService struct {
	repo      RefreshTokenRepository
	tokens    shared.TokenService
	blocklist TokenBlocklistService
	users     shared.UserProvider
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

var _ shared.SessionIssuer = (*SessionService)(nil)

// NewSessionService creates a new session service.
func NewSessionService(
	repo RefreshTokenRepository,
	tokens shared.TokenService,
	blocklist TokenBlocklistService,
	users shared.UserProvider,
	cfg *config.Config,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		repo:      repo,
		tokens:    tokens,
		blocklist: blocklist,
		users:     users,
		cfg:       cfg,
		logger:    logger.Named("sessions"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueSession creates an access token and a new refresh session for the user.
func (s *SessionService) IssueSession(ctx context.Context, userData shared.UserDataForToken, meta shared.ClientMeta) (*shared.TokenResponse, error) {
	accessToken, accessExpiresAt, err := s.tokens.GenerateAccessToken(userData)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	raw, err := crypto.GenerateRandomHex(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	record := &RefreshToken{
		UserID:    userData.GetID(),
		TokenHash: crypto.HashToken(raw),
		ExpiresAt: now.Add(s.cfg.JWTRefreshTokenExpiryDays),
		IP:        common.TruncateUTF8(meta.IP, 45),
		UserAgent: common.TruncateUTF8(meta.UserAgent, 255),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	return &shared.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresAt:    accessExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair is issued.
func (s *SessionService) Refresh(ctx context.Context, rawToken string, meta shared.ClientMeta) (*shared.TokenResponse, error) {
	record, err := s.repo.FindByHash(ctx, crypto.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errInvalidRefreshToken
		}
		return nil, err
	}

	now := s.now()
	if !record.Usable(now) {
		s.logger.Info("Rejected unusable refresh token",
			zap.String("userID", record.UserID.String()),
			zap.Bool("revoked", record.RevokedAt != nil),
		)
		return nil, errInvalidRefreshToken
	}

	usr, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errInvalidRefreshToken
		}
		return nil, err
	}
	if usr.Status == shared.StatusSuspended {
		return nil, common.ErrAccountDisabled
	}

	revoked, err := s.repo.Revoke(ctx, record.ID, now)
	if err != nil {
		return nil, err
	}
	if !revoked {
		// Lost a race with a concurrent refresh or logout of the same token.
		return nil, errInvalidRefreshToken
	}

	return s.IssueSession(ctx, usr, meta)
}

// Logout revokes one refresh session owned by userID and blocklists the current access token.
func (s *SessionService) Logout(ctx context.Context, userID uuid.UUID, rawToken, jti string, accessExpiresAt time.Time) error {
	record, err := s.repo.FindByHash(ctx, crypto.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errInvalidRefreshToken
		}
		return err
	}
	if record.UserID != userID {
		s.logger.Warn("Logout with a refresh token owned by another user", zap.String("userID", userID.String()))
		return errInvalidRefreshToken
	}

	if _, err := s.repo.Revoke(ctx, record.ID, s.now()); err != nil {
		return err
	}
	return s.blockAccessToken(ctx, jti, accessExpiresAt)
}

// LogoutAll revokes every refresh session of the user and blocklists the current access token.
func (s *SessionService) LogoutAll(ctx context.Context, userID uuid.UUID, jti string, accessExpiresAt time.Time) error {
	if err := s.RevokeAllSessions(ctx, userID); err != nil {
		return err
	}
	return s.blockAccessToken(ctx, jti, accessExpiresAt)
}

// RevokeAllSessions revokes every live refresh token of the user.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	n, err := s.repo.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return err
	}
	s.logger.Info("Revoked refresh sessions", zap.String("userID", userID.String()), zap.Int64("count", n))
	return nil
}

// PurgeStale deletes refresh tokens that expired or were revoked more than grace ago.
func (s *SessionService) PurgeStale(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repo.DeleteStale(ctx, s.now().Add(-grace))
}

func (s *SessionService) blockAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	if err := s.blocklist.AddToBlocklist(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("failed to blocklist access token: %w", err)
	}
	return nil
}
