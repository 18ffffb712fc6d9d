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

type LoginAttemptRepository interface {
	Find(ctx context.Context, username string) (*entity.LoginAttempt, error)
	RecordFailure(ctx context.Context, username string, at, resetBefore time.Time) (int, error)
	Lock(ctx context.Context, username string, until time.Time) error
	Reset(ctx context.Context, username string) error
}

type loginAttemptRow struct {
	Username     string        `db:"username"`
	FailedCount  int           `db:"failed_count"`
	LastFailedAt int64         `db:"last_failed_at"`
	LockedUntil  sql.NullInt64 `db:"locked_until"`
}

type loginAttemptRepository struct {
	db  sqlx.ExtContext
	log *zap.Logger
}

func NewLoginAttemptRepository(db sqlx.ExtContext, log *zap.Logger) LoginAttemptRepository {
	return &loginAttemptRepository{
		db:  db,
		log: log.With(zap.String("repository", "login_attempt")),
	}
}

func (r *loginAttemptRepository) Find(ctx context.Context, username string) (*entity.LoginAttempt, error) {
	query := r.db.Rebind(`
		SELECT username, failed_count, last_failed_at, locked_until
		FROM login_attempts
		WHERE username = ?
	`)

	var row loginAttemptRow
	err := sqlx.GetContext(ctx, r.db, &row, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find login attempts", zap.Error(err), zap.String("username", username))
		return nil, storageError("find login attempts", err)
	}

	attempt := &entity.LoginAttempt{
		Username:     row.Username,
		FailedCount:  row.FailedCount,
		LastFailedAt: fromMillis(row.LastFailedAt),
	}
	if row.LockedUntil.Valid {
		until := fromMillis(row.LockedUntil.Int64)
		attempt.LockedUntil = &until
	}
	return attempt, nil
}

// RecordFailure bumps the counter atomically and returns the new count.
// A previous failure older than resetBefore starts a fresh streak.
func (r *loginAttemptRepository) RecordFailure(ctx context.Context, username string, at, resetBefore time.Time) (int, error) {
	query := r.db.Rebind(`
		INSERT INTO login_attempts (username, failed_count, last_failed_at)
		VALUES (?, 1, ?)
		ON CONFLICT (username) DO UPDATE SET
			failed_count = CASE
				WHEN login_attempts.last_failed_at < ? THEN 1
				ELSE login_attempts.failed_count + 1
			END,
			last_failed_at = excluded.last_failed_at
		RETURNING failed_count
	`)

	var count int
	err := r.db.QueryRowxContext(ctx, query, username, toMillis(at), toMillis(resetBefore)).Scan(&count)
	if err != nil {
		r.log.Error("Failed to record login failure", zap.Error(err), zap.String("username", username))
		return 0, storageError("record login failure", err)
	}
	return count, nil
}

func (r *loginAttemptRepository) Lock(ctx context.Context, username string, until time.Time) error {
	query := r.db.Rebind(`UPDATE login_attempts SET locked_until = ? WHERE username = ?`)

	if _, err := r.db.ExecContext(ctx, query, toMillis(until), username); err != nil {
		r.log.Error("Failed to lock login", zap.Error(err), zap.String("username", username))
		return storageError("lock login", err)
	}
	return nil
}

func (r *loginAttemptRepository) Reset(ctx context.Context, username string) error {
	query := r.db.Rebind(`DELETE FROM login_attempts WHERE username = ?`)

	if _, err := r.db.ExecContext(ctx, query, username); err != nil {
		r.log.Error("Failed to reset login attempts", zap.Error(err), zap.String("username", username))
		return storageError("reset login attempts", err)
	}
	return nil
}
