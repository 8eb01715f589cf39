package user

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"music_backend/internal/common"
	"music_backend/internal/config"
	"music_backend/internal/platform/crypto"
	"music_backend/internal/shared"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	maxHandleLength   = 70
	maxHandleAttempts = 50
	maxNicknameLength = 50
)

var errPasswordLoginDisabled = common.ErrUnauthorized.WithMessage("Password login is not enabled for this account.")

// Service defines the user operations exposed over HTTP and the CLI.
type Service interface {
	Login(ctx context.Context, req LoginReq, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error)
	FirebaseLogin(ctx context.Context, idToken string, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error)
	Register(ctx context.Context, req CreateUserRequest, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error)
	CreateAdmin(ctx context.Context, req CreateUserRequest) (*shared.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*shared.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error
	Unlock(ctx context.Context, id uuid.UUID) (*shared.User, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo       Repository
	sessions   shared.SessionIssuer
	recorder   shared.LoginRecorder
	captcha    shared.CaptchaVerifier
	idVerifier shared.IDTokenVerifier
	cfg        *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)
var _ shared.UserProvider = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(
	repo Repository,
	sessions shared.SessionIssuer,
	recorder shared.LoginRecorder,
	captcha shared.CaptchaVerifier,
	idVerifier shared.IDTokenVerifier,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	return &ServiceImplementation{
		repo:       repo,
		sessions:   sessions,
		recorder:   recorder,
		captcha:    captcha,
		idVerifier: idVerifier,
		cfg:        cfg,
		logger:     logger.Named("user_service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates an email/password pair and opens a session.
// Every outcome is recorded as a login attempt.
func (s *ServiceImplementation) Login(ctx context.Context, req LoginReq, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error) {
	email := NormalizeEmail(req.Email)
	record := s.attemptRecorder(ctx, email, shared.LoginMethodPassword, meta)

	if s.cfg.CaptchaRequired() {
		if req.CaptchaID == "" || req.CaptchaCode == "" {
			record(nil, shared.LoginReasonCaptchaInvalid)
			return nil, nil, common.ErrCaptchaRequired
		}
		if !s.captcha.Verify(req.CaptchaID, req.CaptchaCode) {
			record(nil, shared.LoginReasonCaptchaInvalid)
			return nil, nil, common.ErrCaptchaInvalid
		}
	}

	dbUser, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("Login for unknown email", zap.String("email", email))
			record(nil, shared.LoginReasonUserNotFound)
			return nil, nil, common.ErrInvalidCredentials
		}
		record(nil, shared.LoginReasonInternalError)
		return nil, nil, fmt.Errorf("login lookup: %w", err)
	}

	now := s.now()
	if err := s.checkAccountUsable(dbUser, now); err != nil {
		record(&dbUser.ID, reasonFor(err))
		return nil, nil, err
	}

	if !dbUser.HasPassword() {
		s.logger.Warn("Password login attempted on account without password", zap.String("userID", dbUser.ID.String()))
		record(&dbUser.ID, shared.LoginReasonPasswordNotSet)
		return nil, nil, errPasswordLoginDisabled
	}

	if !crypto.CheckPasswordHash(req.Password, *dbUser.PasswordHash) {
		s.registerFailedPassword(ctx, dbUser, now)
		record(&dbUser.ID, shared.LoginReasonInvalidPassword)
		return nil, nil, common.ErrInvalidCredentials
	}

	dbUser.FailedLoginCount = 0
	dbUser.LockedUntil = nil
	if crypto.NeedsRehash(*dbUser.PasswordHash, s.cfg.BcryptCost) {
		if rehashed, err := crypto.HashPassword(req.Password, s.cfg.BcryptCost); err == nil {
			dbUser.PasswordHash = &rehashed
			s.logger.Info("Password hash upgraded to current cost", zap.String("userID", dbUser.ID.String()))
		} else {
			s.logger.Warn("Password rehash failed", zap.String("userID", dbUser.ID.String()), zap.Error(err))
		}
	}

	sharedUser, tokens, err := s.completeLogin(ctx, dbUser, now, meta)
	if err != nil {
		record(&dbUser.ID, shared.LoginReasonInternalError)
		return nil, nil, err
	}

	record(&dbUser.ID, shared.LoginReasonSuccess)
	s.logger.Info("User logged in successfully", zap.String("userID", dbUser.ID.String()))
	return sharedUser, tokens, nil
}

// FirebaseLogin exchanges a Firebase ID token for a local session, creating or linking the account.
func (s *ServiceImplementation) FirebaseLogin(ctx context.Context, idToken string, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error) {
	identity, err := s.idVerifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, nil, apiErr
		}
		s.logger.Info("Firebase ID token rejected", zap.Error(err))
		s.attemptRecorder(ctx, "", shared.LoginMethodFirebase, meta)(nil, shared.LoginReasonInvalidToken)
		return nil, nil, common.ErrUnauthorized.WithMessage("Invalid Firebase ID token.")
	}

	record := s.attemptRecorder(ctx, NormalizeEmail(identity.Email), shared.LoginMethodFirebase, meta)

	dbUser, err := s.findOrCreateFederated(ctx, identity)
	if err != nil {
		if _, ok := common.IsAPIError(err); !ok {
			record(nil, shared.LoginReasonInternalError)
		}
		return nil, nil, err
	}

	now := s.now()
	if err := s.checkAccountUsable(dbUser, now); err != nil {
		record(&dbUser.ID, reasonFor(err))
		return nil, nil, err
	}

	sharedUser, tokens, err := s.completeLogin(ctx, dbUser, now, meta)
	if err != nil {
		record(&dbUser.ID, shared.LoginReasonInternalError)
		return nil, nil, err
	}
	record(&dbUser.ID, shared.LoginReasonSuccess)
	s.logger.Info("User logged in with Firebase", zap.String("userID", dbUser.ID.String()))
	return sharedUser, tokens, nil
}

// Register creates a new email/password user and signs them in.
func (s *ServiceImplementation) Register(ctx context.Context, req CreateUserRequest, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error) {
	dbUser, err := s.createLocalUser(ctx, req, shared.RoleUser)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.sessions.IssueSession(ctx, dbUser, meta)
	if err != nil {
		s.logger.Error("Failed to issue session after registration", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return nil, nil, err
	}

	s.logger.Info("User registered successfully", zap.String("userID", dbUser.ID.String()))
	return ToShared(dbUser), tokens, nil
}

// CreateAdmin creates an administrator account. Used by the CLI.
func (s *ServiceImplementation) CreateAdmin(ctx context.Context, req CreateUserRequest) (*shared.User, error) {
	common.RegisterValidators()
	if err := binding.Validator.ValidateStruct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return nil, common.NewValidationAPIError(common.FormatValidationErrors(ve))
		}
		return nil, err
	}
	dbUser, err := s.createLocalUser(ctx, req, shared.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Admin user created", zap.String("userID", dbUser.ID.String()))
	return ToShared(dbUser), nil
}

func (s *ServiceImplementation) GetUserByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("Error finding user by ID", zap.Error(err), zap.String("userID", id.String()))
		}
		return nil, err
	}
	return ToShared(dbUser), nil
}

// ChangePassword replaces the caller's password and revokes every refresh session.
func (s *ServiceImplementation) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !dbUser.HasPassword() {
		return common.ErrUnprocessableEntity.WithMessage("This account has no password to change.")
	}
	if !crypto.CheckPasswordHash(req.CurrentPassword, *dbUser.PasswordHash) {
		return common.ErrUnauthorized.WithMessage("Current password is incorrect.")
	}

	hashed, err := crypto.HashPassword(req.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	dbUser.PasswordHash = &hashed
	if err := s.repo.Update(ctx, dbUser); err != nil {
		return err
	}

	if err := s.sessions.RevokeAllSessions(ctx, dbUser.ID); err != nil {
		return err
	}
	s.logger.Info("Password changed", zap.String("userID", dbUser.ID.String()))
	return nil
}

// Unlock clears the failed-attempt counter and any active lockout.
func (s *ServiceImplementation) Unlock(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dbUser.FailedLoginCount = 0
	dbUser.LockedUntil = nil
	if err := s.repo.Update(ctx, dbUser); err != nil {
		return nil, err
	}
	s.logger.Info("User unlocked", zap.String("userID", dbUser.ID.String()))
	return ToShared(dbUser), nil
}

func (s *ServiceImplementation) checkAccountUsable(dbUser *User, now time.Time) error {
	if dbUser.Status == shared.StatusSuspended {
		return common.ErrAccountDisabled
	}
	if dbUser.IsLocked(now) {
		retryAfter := int(math.Ceil(dbUser.LockedUntil.Sub(now).Seconds()))
		return common.ErrLocked.WithDetails(map[string]int{"retry_after_seconds": retryAfter})
	}
	return nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, common.ErrAccountDisabled):
		return shared.LoginReasonAccountDisabled
	case errors.Is(err, common.ErrLocked):
		return shared.LoginReasonAccountLocked
	default:
		return shared.LoginReasonInternalError
	}
}

// registerFailedPassword bumps the counter and locks the account once it reaches the limit.
func (s *ServiceImplementation) registerFailedPassword(ctx context.Context, dbUser *User, now time.Time) {
	count, err := s.repo.IncrementFailedLogins(ctx, dbUser.ID)
	if err != nil {
		s.logger.Error("Failed to record failed login", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return
	}
	s.logger.Warn("Invalid password attempt", zap.String("userID", dbUser.ID.String()), zap.Int("failedAttempts", count))
	if count < s.cfg.LoginMaxFailedAttempts {
		return
	}

	until := now.Add(s.cfg.LoginLockoutDuration)
	dbUser.FailedLoginCount = 0
	dbUser.LockedUntil = &until
	if err := s.repo.Update(ctx, dbUser); err != nil {
		s.logger.Error("Failed to lock account", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return
	}
	s.logger.Warn("Account locked after repeated failures",
		zap.String("userID", dbUser.ID.String()),
		zap.Time("lockedUntil", until),
	)
}

func (s *ServiceImplementation) completeLogin(ctx context.Context, dbUser *User, now time.Time, meta shared.ClientMeta) (*shared.User, *shared.TokenResponse, error) {
	dbUser.LastLoginAt = &now
	dbUser.LastLoginIP = meta.IP
	if err := s.repo.Update(ctx, dbUser); err != nil {
		s.logger.Error("Failed to update user after login", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return nil, nil, err
	}

	tokens, err := s.sessions.IssueSession(ctx, dbUser, meta)
	if err != nil {
		s.logger.Error("Failed to issue session", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return nil, nil, err
	}
	return ToShared(dbUser), tokens, nil
}

func (s *ServiceImplementation) createLocalUser(ctx context.Context, req CreateUserRequest, role string) (*User, error) {
	email := NormalizeEmail(req.Email)
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		return nil, common.NewValidationAPIError(map[string]string{"nickname": "The nickname field is required."})
	}

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, common.ErrConflict.WithDetails("User with this email already exists.")
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user by email: %w", err)
	}

	hashed, err := crypto.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	handle, err := s.uniqueHandle(ctx, nickname)
	if err != nil {
		return nil, err
	}

	dbUser := &User{
		Email:        email,
		PasswordHash: &hashed,
		Nickname:     nickname,
		Handle:       handle,
		AuthProvider: shared.ProviderEmail,
		Role:         role,
		Status:       shared.StatusActive,
	}
	if err := s.repo.Create(ctx, dbUser); err != nil {
		return nil, err
	}
	return dbUser, nil
}

func (s *ServiceImplementation) findOrCreateFederated(ctx context.Context, identity *shared.FederatedIdentity) (*User, error) {
	dbUser, err := s.repo.FindByFirebaseUID(ctx, identity.UID)
	if err == nil {
		return dbUser, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	email := NormalizeEmail(identity.Email)
	if email == "" {
		return nil, common.ErrBadRequest.WithMessage("The Firebase account has no email address.")
	}

	if identity.EmailVerified {
		existing, err := s.repo.FindByEmail(ctx, email)
		if err == nil {
			uid := identity.UID
			existing.FirebaseUID = &uid
			existing.IsEmailVerified = true
			s.logger.Info("Linked Firebase identity to existing user", zap.String("userID", existing.ID.String()))
			return existing, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	nickname := strings.TrimSpace(identity.Name)
	if nickname == "" {
		nickname = strings.SplitN(email, "@", 2)[0]
	}
	nickname = truncateRunes(nickname, maxNicknameLength)

	handle, err := s.uniqueHandle(ctx, nickname)
	if err != nil {
		return nil, err
	}

	uid := identity.UID
	dbUser = &User{
		Email:           email,
		Nickname:        nickname,
		Handle:          handle,
		AuthProvider:    shared.ProviderFirebase,
		FirebaseUID:     &uid,
		IsEmailVerified: identity.EmailVerified,
		Role:            shared.RoleUser,
		Status:          shared.StatusActive,
	}
	if err := s.repo.Create(ctx, dbUser); err != nil {
		return nil, err
	}
	s.logger.Info("Created user from Firebase identity", zap.String("userID", dbUser.ID.String()))
	return dbUser, nil
}

// uniqueHandle slugs the nickname and appends -2, -3, ... until the handle is free.
func (s *ServiceImplementation) uniqueHandle(ctx context.Context, nickname string) (string, error) {
	base := slug.Make(nickname)
	if base == "" {
		base = "user"
	}
	if len(base) > maxHandleLength {
		base = strings.Trim(base[:maxHandleLength], "-")
	}

	for i := 1; i <= maxHandleAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := s.repo.HandleExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s-%s", base, strings.SplitN(uuid.NewString(), "-", 2)[0]), nil
}

// attemptRecorder returns a closure that records one login attempt with the shared request metadata.
func (s *ServiceImplementation) attemptRecorder(ctx context.Context, email, method string, meta shared.ClientMeta) func(userID *uuid.UUID, reason string) {
	return func(userID *uuid.UUID, reason string) {
		s.recorder.Record(ctx, shared.LoginAttempt{
			UserID:     userID,
			Email:      email,
			Method:     method,
			Success:    reason == shared.LoginReasonSuccess,
			Reason:     reason,
			IP:         meta.IP,
			UserAgent:  meta.UserAgent,
			OccurredAt: s.now(),
		})
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
