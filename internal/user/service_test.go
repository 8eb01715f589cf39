package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"music_backend/internal/common"
	"music_backend/internal/config"
	"music_backend/internal/platform/crypto"
	"music_backend/internal/platform/database"
	"music_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MockSessionIssuer is a testify mock of shared.SessionIssuer.
type MockSessionIssuer struct {
	mock.Mock
}

func (m *MockSessionIssuer) IssueSession(ctx context.Context, userData shared.UserDataForToken, meta shared.ClientMeta) (*shared.TokenResponse, error) {
	args := m.Called(ctx, userData, meta)
	tokens, _ := args.Get(0).(*shared.TokenResponse)
	return tokens, args.Error(1)
}

func (m *MockSessionIssuer) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockCaptcha struct {
	mock.Mock
}

func (m *MockCaptcha) Verify(id, answer string) bool {
	return m.Called(id, answer).Bool(0)
}

type MockIDTokenVerifier struct {
	mock.Mock
}

func (m *MockIDTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*shared.FederatedIdentity, error) {
	args := m.Called(ctx, idToken)
	identity, _ := args.Get(0).(*shared.FederatedIdentity)
	return identity, args.Error(1)
}

// recordingRecorder keeps every attempt for assertions.
type recordingRecorder struct {
	mu       sync.Mutex
	attempts []shared.LoginAttempt
}

func (r *recordingRecorder) Record(_ context.Context, attempt shared.LoginAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func (r *recordingRecorder) last() shared.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.attempts) == 0 {
		return shared.LoginAttempt{}
	}
	return r.attempts[len(r.attempts)-1]
}

func newTestDB(t interface {
	Fatalf(format string, args ...interface{})
}) *gorm.DB {
	cfg := &config.Config{
		DBDriver: "sqlite",
		DBSource: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: "silent",
	}
	db, err := database.NewGORM(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		BcryptCost:             bcrypt.MinCost,
		LoginMaxFailedAttempts: 3,
		LoginLockoutDuration:   15 * time.Minute,
		LoginCaptchaMode:       config.CaptchaModeOff,
	}
}

var testTokens = &shared.TokenResponse{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

type UserServiceSuite struct {
	suite.Suite
	ctx        context.Context
	db         *gorm.DB
	repo       Repository
	sessions   *MockSessionIssuer
	recorder   *recordingRecorder
	captcha    *MockCaptcha
	idVerifier *MockIDTokenVerifier
	cfg        *config.Config
	svc        *ServiceImplementation
	now        time.Time
	meta       shared.ClientMeta
}

func (s *UserServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = newTestDB(s.T())
	s.repo = NewGORMRepository(s.db)
	s.sessions = new(MockSessionIssuer)
	s.recorder = &recordingRecorder{}
	s.captcha = new(MockCaptcha)
	s.idVerifier = new(MockIDTokenVerifier)
	s.cfg = testConfig()
	s.svc = NewService(s.repo, s.sessions, s.recorder, s.captcha, s.idVerifier, s.cfg, zap.NewNop())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return s.now }
	s.meta = shared.ClientMeta{IP: "198.51.100.4", UserAgent: "test-agent"}
}

func (s *UserServiceSuite) TearDownTest() {
	database.CloseGORMDB(s.db, zap.NewNop())
}

func (s *UserServiceSuite) seedUser(email, password string, cost int) *User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	s.Require().NoError(err)
	h := string(hash)
	u := &User{
		Email:        email,
		PasswordHash: &h,
		Nickname:     "Listener",
		Handle:       "listener-" + uuid.NewString()[:8],
		AuthProvider: shared.ProviderEmail,
		Role:         shared.RoleUser,
		Status:       shared.StatusActive,
	}
	s.Require().NoError(s.repo.Create(s.ctx, u))
	return u
}

func (s *UserServiceSuite) reload(id uuid.UUID) *User {
	u, err := s.repo.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return u
}

func (s *UserServiceSuite) TestLogin_Success() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil).Once()

	usr, tokens, err := s.svc.Login(s.ctx, LoginReq{Email: "  FAN@example.com ", Password: "correct-horse"}, s.meta)

	s.Require().NoError(err)
	s.Equal(u.ID, usr.ID)
	s.Equal(testTokens, tokens)

	stored := s.reload(u.ID)
	s.Require().NotNil(stored.LastLoginAt)
	s.True(stored.LastLoginAt.Equal(s.now))
	s.Equal("198.51.100.4", stored.LastLoginIP)

	attempt := s.recorder.last()
	s.True(attempt.Success)
	s.Equal(shared.LoginReasonSuccess, attempt.Reason)
	s.Equal("fan@example.com", attempt.Email)
	s.Equal(shared.LoginMethodPassword, attempt.Method)
	s.Require().NotNil(attempt.UserID)
	s.Equal(u.ID, *attempt.UserID)
	s.sessions.AssertExpectations(s.T())
}

func (s *UserServiceSuite) TestLogin_UnknownEmail() {
	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: "nobody@example.com", Password: "whatever1"}, s.meta)

	s.ErrorIs(err, common.ErrInvalidCredentials)
	s.Nil(s.recorder.last().UserID)
	s.Equal(shared.LoginReasonUserNotFound, s.recorder.last().Reason)
	s.sessions.AssertNotCalled(s.T(), "IssueSession", mock.Anything, mock.Anything, mock.Anything)
}

func (s *UserServiceSuite) TestLogin_WrongPasswordLocksAccount() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)

	for i := 0; i < s.cfg.LoginMaxFailedAttempts; i++ {
		_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "wrong-pass"}, s.meta)
		s.ErrorIs(err, common.ErrInvalidCredentials)
		s.Equal(shared.LoginReasonInvalidPassword, s.recorder.last().Reason)
	}

	stored := s.reload(u.ID)
	s.Require().NotNil(stored.LockedUntil)
	s.True(stored.LockedUntil.Equal(s.now.Add(s.cfg.LoginLockoutDuration)))
	s.Zero(stored.FailedLoginCount)

	// The right password is refused while locked.
	s.now = s.now.Add(5 * time.Minute)
	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)
	s.Require().ErrorIs(err, common.ErrLocked)
	var apiErr *common.APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(map[string]int{"retry_after_seconds": 600}, apiErr.Details)
	s.Equal(shared.LoginReasonAccountLocked, s.recorder.last().Reason)

	// After the window it succeeds again and the counter is cleared.
	s.now = s.now.Add(11 * time.Minute)
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil).Once()
	_, _, err = s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)
	s.Require().NoError(err)
	stored = s.reload(u.ID)
	s.Nil(stored.LockedUntil)
	s.Zero(stored.FailedLoginCount)
}

func (s *UserServiceSuite) TestLogin_SuccessResetsFailedCount() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	_, _, _ = s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "wrong-pass"}, s.meta)
	s.Equal(1, s.reload(u.ID).FailedLoginCount)

	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil).Once()
	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)
	s.Require().NoError(err)
	s.Zero(s.reload(u.ID).FailedLoginCount)
}

func (s *UserServiceSuite) TestLogin_SuspendedAccount() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	u.Status = shared.StatusSuspended
	s.Require().NoError(s.repo.Update(s.ctx, u))

	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)

	s.ErrorIs(err, common.ErrAccountDisabled)
	s.Equal(shared.LoginReasonAccountDisabled, s.recorder.last().Reason)
}

func (s *UserServiceSuite) TestLogin_PasswordNotSet() {
	uid := "firebase-uid"
	u := &User{Email: "fed@example.com", Nickname: "Fed", Handle: "fed", AuthProvider: shared.ProviderFirebase,
		FirebaseUID: &uid, Role: shared.RoleUser, Status: shared.StatusActive}
	s.Require().NoError(s.repo.Create(s.ctx, u))

	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "anything1"}, s.meta)

	s.ErrorIs(err, common.ErrUnauthorized)
	s.Equal(shared.LoginReasonPasswordNotSet, s.recorder.last().Reason)
}

func (s *UserServiceSuite) TestLogin_CaptchaAlways() {
	s.cfg.LoginCaptchaMode = config.CaptchaModeAlways
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)

	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)
	s.ErrorIs(err, common.ErrCaptchaRequired)

	s.captcha.On("Verify", "cid", "0000").Return(false).Once()
	_, _, err = s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse", CaptchaID: "cid", CaptchaCode: "0000"}, s.meta)
	s.ErrorIs(err, common.ErrCaptchaInvalid)
	s.Equal(shared.LoginReasonCaptchaInvalid, s.recorder.last().Reason)

	s.captcha.On("Verify", "cid2", "1234").Return(true).Once()
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil).Once()
	_, _, err = s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse", CaptchaID: "cid2", CaptchaCode: "1234"}, s.meta)
	s.NoError(err)
	s.captcha.AssertExpectations(s.T())
}

func (s *UserServiceSuite) TestLogin_RehashesWeakerHash() {
	s.cfg.BcryptCost = bcrypt.MinCost + 1
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil).Once()

	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)
	s.Require().NoError(err)

	stored := s.reload(u.ID)
	cost, err := bcrypt.Cost([]byte(*stored.PasswordHash))
	s.Require().NoError(err)
	s.Equal(bcrypt.MinCost+1, cost)
	s.True(crypto.CheckPasswordHash("correct-horse", *stored.PasswordHash))
}

func (s *UserServiceSuite) TestLogin_SessionFailureIsRecorded() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(nil, errors.New("db down")).Once()

	_, _, err := s.svc.Login(s.ctx, LoginReq{Email: u.Email, Password: "correct-horse"}, s.meta)

	s.Error(err)
	s.Equal(shared.LoginReasonInternalError, s.recorder.last().Reason)
}

func (s *UserServiceSuite) TestRegister_CreatesUserWithUniqueHandle() {
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil)

	first, _, err := s.svc.Register(s.ctx, CreateUserRequest{Email: "a@example.com", Password: "password1", Nickname: "DJ Shadow"}, s.meta)
	s.Require().NoError(err)
	second, _, err := s.svc.Register(s.ctx, CreateUserRequest{Email: "b@example.com", Password: "password1", Nickname: "DJ Shadow"}, s.meta)
	s.Require().NoError(err)

	s.Equal("dj-shadow", first.Handle)
	s.Equal("dj-shadow-2", second.Handle)
	s.Equal(shared.RoleUser, first.Role)
	s.Equal(shared.ProviderEmail, first.AuthProvider)

	stored := s.reload(first.ID)
	s.Require().NotNil(stored.PasswordHash)
	s.NotEqual("password1", *stored.PasswordHash)
}

func (s *UserServiceSuite) TestRegister_DuplicateEmail() {
	s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)

	_, _, err := s.svc.Register(s.ctx, CreateUserRequest{Email: "FAN@example.com", Password: "password1", Nickname: "Fan"}, s.meta)

	s.ErrorIs(err, common.ErrConflict)
	s.sessions.AssertNotCalled(s.T(), "IssueSession", mock.Anything, mock.Anything, mock.Anything)
}

func (s *UserServiceSuite) TestCreateAdmin() {
	_, err := s.svc.CreateAdmin(s.ctx, CreateUserRequest{Email: "root@example.com", Password: "short", Nickname: "Root"})
	var apiErr *common.APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal("VALIDATION_ERROR", apiErr.Code)

	admin, err := s.svc.CreateAdmin(s.ctx, CreateUserRequest{Email: "root@example.com", Password: "long-enough", Nickname: "Root"})
	s.Require().NoError(err)
	s.Equal(shared.RoleAdmin, admin.Role)
}

func (s *UserServiceSuite) TestFirebaseLogin_CreatesUser() {
	s.idVerifier.On("VerifyIDToken", mock.Anything, "tok").Return(&shared.FederatedIdentity{
		UID: "uid-1", Email: "New@Example.com", EmailVerified: true, Name: "New Listener",
	}, nil)
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil)

	usr, _, err := s.svc.FirebaseLogin(s.ctx, "tok", s.meta)
	s.Require().NoError(err)
	s.Equal("new@example.com", usr.Email)
	s.Equal("new-listener", usr.Handle)
	s.Equal(shared.ProviderFirebase, usr.AuthProvider)
	s.True(usr.IsEmailVerified)

	// A second login resolves the same account by UID.
	again, _, err := s.svc.FirebaseLogin(s.ctx, "tok", s.meta)
	s.Require().NoError(err)
	s.Equal(usr.ID, again.ID)
	s.Equal(shared.LoginMethodFirebase, s.recorder.last().Method)
}

func (s *UserServiceSuite) TestFirebaseLogin_LinksVerifiedEmail() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	s.idVerifier.On("VerifyIDToken", mock.Anything, "tok").Return(&shared.FederatedIdentity{
		UID: "uid-2", Email: "fan@example.com", EmailVerified: true,
	}, nil)
	s.sessions.On("IssueSession", mock.Anything, mock.Anything, s.meta).Return(testTokens, nil)

	usr, _, err := s.svc.FirebaseLogin(s.ctx, "tok", s.meta)
	s.Require().NoError(err)
	s.Equal(u.ID, usr.ID)

	stored := s.reload(u.ID)
	s.Require().NotNil(stored.FirebaseUID)
	s.Equal("uid-2", *stored.FirebaseUID)
	s.True(stored.HasPassword())
}

func (s *UserServiceSuite) TestFirebaseLogin_UnverifiedEmailCollision() {
	s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	s.idVerifier.On("VerifyIDToken", mock.Anything, "tok").Return(&shared.FederatedIdentity{
		UID: "uid-3", Email: "fan@example.com", EmailVerified: false,
	}, nil)

	_, _, err := s.svc.FirebaseLogin(s.ctx, "tok", s.meta)

	s.ErrorIs(err, common.ErrConflict)
}

func (s *UserServiceSuite) TestFirebaseLogin_InvalidToken() {
	s.idVerifier.On("VerifyIDToken", mock.Anything, "bad").Return(nil, errors.New("token expired"))

	_, _, err := s.svc.FirebaseLogin(s.ctx, "bad", s.meta)

	s.ErrorIs(err, common.ErrUnauthorized)
	s.Equal(shared.LoginReasonInvalidToken, s.recorder.last().Reason)
}

func (s *UserServiceSuite) TestFirebaseLogin_NotConfigured() {
	s.idVerifier.On("VerifyIDToken", mock.Anything, "tok").
		Return(nil, common.ErrServiceUnavailable.WithMessage("Firebase login is not configured."))

	_, _, err := s.svc.FirebaseLogin(s.ctx, "tok", s.meta)

	s.ErrorIs(err, common.ErrServiceUnavailable)
	s.Empty(s.recorder.attempts)
}

func (s *UserServiceSuite) TestChangePassword_RevokesSessions() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	s.sessions.On("RevokeAllSessions", mock.Anything, u.ID).Return(nil).Once()

	err := s.svc.ChangePassword(s.ctx, u.ID, ChangePasswordRequest{CurrentPassword: "wrong-one", NewPassword: "new-password"})
	s.ErrorIs(err, common.ErrUnauthorized)

	err = s.svc.ChangePassword(s.ctx, u.ID, ChangePasswordRequest{CurrentPassword: "correct-horse", NewPassword: "new-password"})
	s.Require().NoError(err)
	s.True(crypto.CheckPasswordHash("new-password", *s.reload(u.ID).PasswordHash))
	s.sessions.AssertExpectations(s.T())
}

func (s *UserServiceSuite) TestUnlock() {
	u := s.seedUser("fan@example.com", "correct-horse", bcrypt.MinCost)
	until := s.now.Add(time.Hour)
	u.LockedUntil = &until
	u.FailedLoginCount = 2
	s.Require().NoError(s.repo.Update(s.ctx, u))

	usr, err := s.svc.Unlock(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.ID, usr.ID)
	stored := s.reload(u.ID)
	s.Nil(stored.LockedUntil)
	s.Zero(stored.FailedLoginCount)

	_, err = s.svc.Unlock(s.ctx, uuid.New())
	s.ErrorIs(err, common.ErrNotFound)
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}
