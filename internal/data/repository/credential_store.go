package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"tcg-server/internal/data/entity"
	"tcg-server/pkg/database"
	"tcg-server/pkg/utils"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the durable home of accounts and sessions. It hashes
// passwords but knows nothing about token formats or validation policy.
type CredentialStore interface {
	CreateUser(ctx context.Context, username, password string) (int64, error)
	Authenticate(ctx context.Context, username, password string) (int64, error)
	GetUser(ctx context.Context, userID int64) (*entity.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdatePassword(ctx context.Context, userID int64, newPassword string) error
	DeleteUser(ctx context.Context, userID int64) error

	SaveSession(ctx context.Context, session *entity.Session) error
	ValidateSession(ctx context.Context, token string) (int64, bool, error)
	InvalidateSession(ctx context.Context, token string) error
	SweepExpiredSessions(ctx context.Context) (int64, error)
	PurgeSessions(ctx context.Context, before time.Time) (int64, error)

	LoginLockedUntil(ctx context.Context, username string) (time.Time, error)
	RecordLoginFailure(ctx context.Context, username string, resetBefore time.Time) (int, error)
	LockLogin(ctx context.Context, username string, until time.Time) error
	ResetLoginFailures(ctx context.Context, username string) error
}

type StoreOption func(*credentialStore)

// WithHashCost sets the bcrypt cost used for new hashes.
func WithHashCost(cost int) StoreOption {
	return func(s *credentialStore) {
		s.hashCost = cost
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) StoreOption {
	return func(s *credentialStore) {
		s.now = now
	}
}

type credentialStore struct {
	db       *sqlx.DB
	users    UserRepository
	sessions SessionRepository
	attempts LoginAttemptRepository
	hashCost int
	now      func() time.Time
	log      *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(db *sqlx.DB, log *zap.Logger, opts ...StoreOption) CredentialStore {
	s := &credentialStore{
		db:       db,
		users:    NewUserRepository(db, log),
		sessions: NewSessionRepository(db, log),
		attempts: NewLoginAttemptRepository(db, log),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		log:      log.With(zap.String("repository", "credential_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *credentialStore) CreateUser(ctx context.Context, username, password string) (int64, error) {
	hash, err := utils.HashPassword(password, s.hashCost)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return 0, storageError("hash password", err)
	}

	now := s.now()
	user := &entity.User{
		Base: entity.Base{
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:     username,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Authenticate runs a bcrypt comparison even for unknown usernames so both
// failure paths cost the same.
func (s *credentialStore) Authenticate(ctx context.Context, username, password string) (int64, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return 0, err
	}

	if user == nil {
		utils.CheckPasswordHash(password, s.timingHash())
		return 0, ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return 0, ErrInvalidCredentials
	}
	return user.ID, nil
}

func (s *credentialStore) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := utils.HashPassword("timing-equaliser", s.hashCost)
		if err != nil {
			s.log.Warn("Failed to build timing hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *credentialStore) GetUser(ctx context.Context, userID int64) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *credentialStore) CountUsers(ctx context.Context) (int64, error) {
	return s.users.CountAll(ctx)
}

func (s *credentialStore) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	hash, err := utils.HashPassword(newPassword, s.hashCost)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err), zap.Int64("user_id", userID))
		return storageError("hash password", err)
	}
	return s.users.UpdatePassword(ctx, userID, hash, s.now())
}

// DeleteUser removes the account, its sessions and its lockout row in one transaction.
func (s *credentialStore) DeleteUser(ctx context.Context, userID int64) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := NewSessionRepository(tx, s.log).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := NewLoginAttemptRepository(tx, s.log).Reset(ctx, user.Username); err != nil {
			return err
		}
		return NewUserRepository(tx, s.log).Delete(ctx, userID)
	})
	if err != nil {
		if !errors.Is(err, ErrStorage) && !errors.Is(err, ErrUserNotFound) {
			err = storageError("delete user", err)
		}
		return err
	}

	s.log.Info("User deleted", zap.Int64("user_id", userID))
	return nil
}

func (s *credentialStore) SaveSession(ctx context.Context, session *entity.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	return s.sessions.Create(ctx, session)
}

// ValidateSession is a pure read: the token must exist, be active and unexpired.
func (s *credentialStore) ValidateSession(ctx context.Context, token string) (int64, bool, error) {
	now := s.now()
	session, err := s.sessions.FindValidSession(ctx, token, now)
	if err != nil {
		return 0, false, err
	}
	if session == nil || !session.Valid(now) {
		return 0, false, nil
	}
	return session.UserID, true, nil
}

func (s *credentialStore) InvalidateSession(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

func (s *credentialStore) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.RevokeExpired(ctx, s.now())
}

func (s *credentialStore) PurgeSessions(ctx context.Context, before time.Time) (int64, error) {
	return s.sessions.DeleteInactiveBefore(ctx, before)
}

// LoginLockedUntil returns the zero time when the username is not locked.
func (s *credentialStore) LoginLockedUntil(ctx context.Context, username string) (time.Time, error) {
	attempt, err := s.attempts.Find(ctx, username)
	if err != nil {
		return time.Time{}, err
	}
	if attempt == nil || !attempt.Locked(s.now()) {
		return time.Time{}, nil
	}
	return *attempt.LockedUntil, nil
}

func (s *credentialStore) RecordLoginFailure(ctx context.Context, username string, resetBefore time.Time) (int, error) {
	return s.attempts.RecordFailure(ctx, username, s.now(), resetBefore)
}

func (s *credentialStore) LockLogin(ctx context.Context, username string, until time.Time) error {
	return s.attempts.Lock(ctx, username, until)
}

func (s *credentialStore) ResetLoginFailures(ctx context.Context, username string) error {
	return s.attempts.Reset(ctx, username)
}
