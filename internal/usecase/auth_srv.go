package usecase

//go:generate mockgen -source=auth_srv.go -destination=auth_srv_mock.go -package=usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"tcg-server/internal/data/entity"
	"tcg-server/internal/data/repository"
	"tcg-server/internal/dto/request"
	"tcg-server/internal/dto/response"
	"tcg-server/pkg/metrics"
	"tcg-server/pkg/utils"

	"go.uber.org/zap"
)

const (
	// failures older than this no longer count towards a lockout
	failureWindow = 24 * time.Hour
	maxLockout    = 24 * time.Hour
)

// AuthService implements the session protocol without holding any
// per-client state. Every call carries the token it acts on.
type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (int64, error)
	GetUserInfo(ctx context.Context, token string) (*response.UserResponse, error)
	ChangePassword(ctx context.Context, token string, req *request.ChangePasswordRequest) error
	DeleteAccount(ctx context.Context, token string, req *request.DeleteAccountRequest) error
	SweepExpiredSessions(ctx context.Context) (int64, error)
	PurgeSessions(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

type authService struct {
	store  repository.CredentialStore
	tokens *utils.TokenCodec
	config *utils.Config
	now    func() time.Time
	log    *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	tokens *utils.TokenCodec,
	config *utils.Config,
	log *zap.Logger,
) AuthService {
	return &authService{
		store:  repo.Credentials,
		tokens: tokens,
		config: config,
		now:    time.Now,
		log:    log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)

	// 1. Validate input, storage untouched on failure
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Debug("Register validation failed", zap.String("errors", utils.FormatValidationErrors(errs)))
		metrics.Registrations.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, newAuthError(ErrValidation, errs[0].Message)
	}

	// 2. Create user
	userID, err := s.store.CreateUser(ctx, req.Username, req.Password)
	if errors.Is(err, repository.ErrDuplicateUsername) {
		s.log.Info("Register rejected, username taken", zap.String("username", req.Username))
		metrics.Registrations.WithLabelValues(metrics.ResultDuplicate).Inc()
		return nil, newAuthError(ErrDuplicateUsername, MsgDuplicateUsername)
	}
	if err != nil {
		metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return nil, s.storageFailure("create user", err, zap.String("username", req.Username))
	}

	// 3. Load the stored row for the response
	user, err := s.store.GetUser(ctx, userID)
	if err != nil || user == nil {
		metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return nil, s.storageFailure("load registered user", err, zap.Int64("user_id", userID))
	}

	metrics.Registrations.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)

	// 1. Validate
	if req.Username == "" || req.Password == "" {
		metrics.LoginAttempts.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, newAuthError(ErrValidation, "username and password are required")
	}

	now := s.now()

	// 2. Refuse while locked out
	if s.lockoutEnabled() {
		lockedUntil, err := s.store.LoginLockedUntil(ctx, req.Username)
		if err != nil {
			return nil, s.storageFailure("check login lockout", err, zap.String("username", req.Username))
		}
		if lockedUntil.After(now) {
			s.log.Warn("Login refused, username locked",
				zap.String("username", req.Username),
				zap.Time("locked_until", lockedUntil),
				zap.String("ip", req.IPAddress))
			metrics.LoginAttempts.WithLabelValues(metrics.ResultRateLimited).Inc()
			return nil, newAuthError(ErrRateLimited, MsgRateLimited)
		}
	}

	// 3. Check credentials
	userID, err := s.store.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, repository.ErrInvalidCredentials) {
		s.log.Warn("Invalid login", zap.String("username", req.Username), zap.String("ip", req.IPAddress))
		metrics.LoginAttempts.WithLabelValues(metrics.ResultInvalid).Inc()
		s.recordFailure(ctx, req.Username, now)
		return nil, newAuthError(ErrInvalidCredentials, MsgInvalidCredentials)
	}
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.ResultError).Inc()
		return nil, s.storageFailure("authenticate", err, zap.String("username", req.Username))
	}

	if s.lockoutEnabled() {
		if err := s.store.ResetLoginFailures(ctx, req.Username); err != nil {
			s.log.Warn("Failed to reset login failures", zap.Error(err), zap.String("username", req.Username))
		}
	}

	// 4. Mint and persist the session
	session, err := s.createSession(ctx, userID, req.IPAddress, now)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.ResultError).Inc()
		return nil, s.storageFailure("create session", err, zap.Int64("user_id", userID))
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil || user == nil {
		metrics.LoginAttempts.WithLabelValues(metrics.ResultError).Inc()
		return nil, s.storageFailure("load user", err, zap.Int64("user_id", userID))
	}

	metrics.LoginAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("ip", req.IPAddress))

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

// Logout invalidates exactly the presented token. Unknown tokens are a no-op.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.store.InvalidateSession(ctx, token); err != nil {
		return s.storageFailure("invalidate session", err)
	}

	s.log.Info("Session invalidated")
	return nil
}

// ValidateToken checks the token format first and then asks the store
// whether the session is still live.
func (s *authService) ValidateToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, newAuthError(ErrNotAuthenticated, MsgLoginRequired)
	}

	candidate, err := s.tokens.Parse(token)
	if err != nil {
		s.log.Debug("Rejected malformed token")
		return 0, newAuthError(ErrInvalidOrExpiredToken, MsgInvalidSession)
	}

	userID, ok, err := s.store.ValidateSession(ctx, token)
	if err != nil {
		return 0, s.storageFailure("validate session", err)
	}
	if !ok {
		return 0, newAuthError(ErrInvalidOrExpiredToken, MsgInvalidSession)
	}

	if userID != candidate {
		s.log.Warn("Token user does not match session owner",
			zap.Int64("token_user_id", candidate),
			zap.Int64("session_user_id", userID))
		return 0, newAuthError(ErrInvalidOrExpiredToken, MsgInvalidSession)
	}

	return userID, nil
}

func (s *authService) GetUserInfo(ctx context.Context, token string) (*response.UserResponse, error) {
	user, err := s.sessionUser(ctx, token)
	if err != nil {
		return nil, err
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (s *authService) ChangePassword(ctx context.Context, token string, req *request.ChangePasswordRequest) error {
	// 1. Active session
	user, err := s.sessionUser(ctx, token)
	if err != nil {
		return err
	}

	// 2. New password matches confirmation and policy
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Debug("Change password validation failed", zap.String("errors", utils.FormatValidationErrors(errs)))
		return newAuthError(ErrValidation, errs[0].Message)
	}

	// 3. Re-authenticate with the old password
	if _, err := s.store.Authenticate(ctx, user.Username, req.OldPassword); err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			s.log.Warn("Change password with wrong current password", zap.Int64("user_id", user.ID))
			return newAuthError(ErrInvalidCredentials, MsgWrongPassword)
		}
		return s.storageFailure("re-authenticate", err, zap.Int64("user_id", user.ID))
	}

	// 4. Commit
	if err := s.store.UpdatePassword(ctx, user.ID, req.NewPassword); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newAuthError(ErrInvalidOrExpiredToken, MsgInvalidSession)
		}
		return s.storageFailure("update password", err, zap.Int64("user_id", user.ID))
	}

	s.log.Info("Password changed", zap.Int64("user_id", user.ID))
	return nil
}

func (s *authService) DeleteAccount(ctx context.Context, token string, req *request.DeleteAccountRequest) error {
	user, err := s.sessionUser(ctx, token)
	if err != nil {
		return err
	}

	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Debug("Delete account validation failed", zap.String("errors", utils.FormatValidationErrors(errs)))
		return newAuthError(ErrValidation, "password is required to delete the account")
	}

	if _, err := s.store.Authenticate(ctx, user.Username, req.Password); err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			s.log.Warn("Delete account with wrong password", zap.Int64("user_id", user.ID))
			return newAuthError(ErrInvalidCredentials, MsgIncorrectPassword)
		}
		return s.storageFailure("re-authenticate", err, zap.Int64("user_id", user.ID))
	}

	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newAuthError(ErrInvalidOrExpiredToken, MsgInvalidSession)
		}
		return s.storageFailure("delete user", err, zap.Int64("user_id", user.ID))
	}

	s.log.Info("Account deleted",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))
	return nil
}

func (s *authService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	swept, err := s.store.SweepExpiredSessions(ctx)
	if err != nil {
		return 0, s.storageFailure("sweep expired sessions", err)
	}

	metrics.SessionsSwept.Add(float64(swept))
	if swept > 0 {
		s.log.Info("Expired sessions swept", zap.Int64("count", swept))
	}
	return swept, nil
}

// PurgeSessions deletes inactive sessions that expired before the retention window.
func (s *authService) PurgeSessions(ctx context.Context) (int64, error) {
	retention := s.config.Session.Retention
	if retention <= 0 {
		return 0, nil
	}

	purged, err := s.store.PurgeSessions(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, s.storageFailure("purge sessions", err)
	}

	if purged > 0 {
		s.log.Info("Old sessions purged", zap.Int64("count", purged))
	}
	return purged, nil
}

func (s *authService) CountUsers(ctx context.Context) (int64, error) {
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, s.storageFailure("count users", err)
	}
	return total, nil
}

// ==================== HELPER METHODS ====================

func (s *authService) sessionUser(ctx context.Context, token string) (*entity.User, error) {
	userID, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, s.storageFailure("load user", err, zap.Int64("user_id", userID))
	}
	if user == nil {
		return nil, newAuthError(ErrInvalidOrExpiredToken, MsgInvalidSession)
	}
	return user, nil
}

func (s *authService) createSession(ctx context.Context, userID int64, ip string, now time.Time) (*entity.Session, error) {
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			CreatedAt: now,
		},
		UserID:    userID,
		Token:     s.tokens.Generate(userID),
		ExpiresAt: now.Add(s.sessionLifetime()),
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *authService) sessionLifetime() time.Duration {
	if s.config.Session.Lifetime > 0 {
		return s.config.Session.Lifetime
	}
	return 2 * time.Hour
}

func (s *authService) lockoutEnabled() bool {
	return s.config.Security.MaxLoginAttempts > 0 && s.config.Security.LockoutDuration > 0
}

// recordFailure bumps the counter and locks the username once the limit is
// reached. Each failure past the limit doubles the lock.
func (s *authService) recordFailure(ctx context.Context, username string, now time.Time) {
	if !s.lockoutEnabled() {
		return
	}

	failures, err := s.store.RecordLoginFailure(ctx, username, now.Add(-failureWindow))
	if err != nil {
		s.log.Error("Failed to record login failure", zap.Error(err), zap.String("username", username))
		return
	}

	lock := lockoutDuration(failures, s.config.Security.MaxLoginAttempts, s.config.Security.LockoutDuration)
	if lock <= 0 {
		return
	}

	until := now.Add(lock)
	if err := s.store.LockLogin(ctx, username, until); err != nil {
		s.log.Error("Failed to lock login", zap.Error(err), zap.String("username", username))
		return
	}

	s.log.Warn("Username locked after repeated failures",
		zap.String("username", username),
		zap.Int("failures", failures),
		zap.Time("locked_until", until))
}

func lockoutDuration(failures, maxAttempts int, base time.Duration) time.Duration {
	if failures < maxAttempts {
		return 0
	}

	lock := base
	for i := maxAttempts; i < failures && lock < maxLockout; i++ {
		lock *= 2
	}
	if lock > maxLockout {
		lock = maxLockout
	}
	return lock
}

func (s *authService) storageFailure(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	s.log.Error("Auth storage failure", fields...)
	return &AuthError{Kind: ErrStorage, Message: MsgInternalError}
}
