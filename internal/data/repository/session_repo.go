package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tcg-server/internal/data/entity"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByToken(ctx context.Context, token string) (*entity.Session, error)
	FindValidSession(ctx context.Context, token string, now time.Time) (*entity.Session, error)
	Revoke(ctx context.Context, token string) error
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

type sessionRow struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	Token     string         `db:"session_token"`
	CreatedAt int64          `db:"created_at"`
	ExpiresAt int64          `db:"expires_at"`
	IPAddress sql.NullString `db:"ip_address"`
	IsActive  bool           `db:"is_active"`
}

func (r sessionRow) toEntity() *entity.Session {
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			ID:        r.ID,
			CreatedAt: fromMillis(r.CreatedAt),
		},
		UserID:    r.UserID,
		Token:     r.Token,
		ExpiresAt: fromMillis(r.ExpiresAt),
		IsActive:  r.IsActive,
	}
	if r.IPAddress.Valid {
		ip := r.IPAddress.String
		session.IPAddress = &ip
	}
	return session
}

type sessionRepository struct {
	db  sqlx.ExtContext
	log *zap.Logger
}

func NewSessionRepository(db sqlx.ExtContext, log *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log.With(zap.String("repository", "session")),
	}
}

// Create inserts an active session. A token collision is a storage failure.
func (r *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	query := r.db.Rebind(`
		INSERT INTO sessions (user_id, session_token, created_at, expires_at, ip_address, is_active)
		VALUES (?, ?, ?, ?, ?, TRUE)
		RETURNING id
	`)

	var ip sql.NullString
	if session.IPAddress != nil {
		ip = sql.NullString{String: *session.IPAddress, Valid: true}
	}

	err := r.db.QueryRowxContext(ctx, query,
		session.UserID,
		session.Token,
		toMillis(session.CreatedAt),
		toMillis(session.ExpiresAt),
		ip,
	).Scan(&session.ID)

	if isUniqueViolation(err) {
		r.log.Error("Session token collision", zap.Int64("user_id", session.UserID))
		return storageError("create session", ErrDuplicateToken)
	}
	if err != nil {
		r.log.Error("Failed to create session",
			zap.Error(err),
			zap.Int64("user_id", session.UserID),
		)
		return storageError("create session", err)
	}

	session.IsActive = true
	return nil
}

func (r *sessionRepository) FindByToken(ctx context.Context, token string) (*entity.Session, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, session_token, created_at, expires_at, ip_address, is_active
		FROM sessions
		WHERE session_token = ?
	`)

	var row sessionRow
	err := sqlx.GetContext(ctx, r.db, &row, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find session", zap.Error(err))
		return nil, storageError("find session", err)
	}

	return row.toEntity(), nil
}

// FindValidSession returns the session only if it is active and unexpired at now.
func (r *sessionRepository) FindValidSession(ctx context.Context, token string, now time.Time) (*entity.Session, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, session_token, created_at, expires_at, ip_address, is_active
		FROM sessions
		WHERE session_token = ?
		  AND is_active = TRUE
		  AND expires_at > ?
	`)

	var row sessionRow
	err := sqlx.GetContext(ctx, r.db, &row, query, token, toMillis(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find valid session", zap.Error(err))
		return nil, storageError("find valid session", err)
	}

	return row.toEntity(), nil
}

// Revoke is idempotent: an unknown or already revoked token is not an error.
func (r *sessionRepository) Revoke(ctx context.Context, token string) error {
	query := r.db.Rebind(`
		UPDATE sessions
		SET is_active = FALSE
		WHERE session_token = ? AND is_active = TRUE
	`)

	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		r.log.Error("Failed to revoke session", zap.Error(err))
		return storageError("revoke session", err)
	}

	return nil
}

func (r *sessionRepository) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := r.db.Rebind(`
		UPDATE sessions
		SET is_active = FALSE
		WHERE is_active = TRUE AND expires_at <= ?
	`)

	result, err := r.db.ExecContext(ctx, query, toMillis(now))
	if err != nil {
		r.log.Error("Failed to revoke expired sessions", zap.Error(err))
		return 0, storageError("revoke expired sessions", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("revoke expired sessions", err)
	}
	return affected, nil
}

// DeleteInactiveBefore physically removes revoked sessions that expired before the cutoff.
func (r *sessionRepository) DeleteInactiveBefore(ctx context.Context, before time.Time) (int64, error) {
	query := r.db.Rebind(`
		DELETE FROM sessions
		WHERE is_active = FALSE AND expires_at < ?
	`)

	result, err := r.db.ExecContext(ctx, query, toMillis(before))
	if err != nil {
		r.log.Error("Failed to clean expired sessions", zap.Error(err))
		return 0, storageError("clean sessions", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("clean sessions", err)
	}
	return affected, nil
}

func (r *sessionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	query := r.db.Rebind(`DELETE FROM sessions WHERE user_id = ?`)

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		r.log.Error("Failed to delete user sessions", zap.Error(err), zap.Int64("user_id", userID))
		return storageError("delete user sessions", err)
	}
	return nil
}
