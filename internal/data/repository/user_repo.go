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

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	CountAll(ctx context.Context) (int64, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id int64) error
}

type userRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r userRow) toEntity() *entity.User {
	return &entity.User{
		Base: entity.Base{
			ID:        r.ID,
			CreatedAt: fromMillis(r.CreatedAt),
			UpdatedAt: fromMillis(r.UpdatedAt),
		},
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
	}
}

type userRepository struct {
	db  sqlx.ExtContext
	log *zap.Logger
}

func NewUserRepository(db sqlx.ExtContext, log *zap.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log.With(zap.String("repository", "user")),
	}
}

// Create inserts the user and sets its generated ID.
func (ur *userRepository) Create(ctx context.Context, user *entity.User) error {
	query := ur.db.Rebind(`
		INSERT INTO users (username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)

	err := ur.db.QueryRowxContext(ctx, query,
		user.Username,
		user.PasswordHash,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	).Scan(&user.ID)

	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}
	if err != nil {
		ur.log.Error("Failed to create user",
			zap.Error(err),
			zap.String("username", user.Username),
		)
		return storageError("create user", err)
	}

	return nil
}

func (ur *userRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	query := ur.db.Rebind(`
		SELECT id, username, password_hash, created_at, updated_at
		FROM users
		WHERE id = ?
	`)

	return ur.findOne(ctx, query, id)
}

func (ur *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	query := ur.db.Rebind(`
		SELECT id, username, password_hash, created_at, updated_at
		FROM users
		WHERE username = ?
	`)

	return ur.findOne(ctx, query, username)
}

func (ur *userRepository) findOne(ctx context.Context, query string, arg any) (*entity.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, ur.db, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		ur.log.Error("Failed to find user", zap.Error(err), zap.Any("key", arg))
		return nil, storageError("find user", err)
	}

	return row.toEntity(), nil
}

func (ur *userRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	if err := sqlx.GetContext(ctx, ur.db, &total, `SELECT COUNT(*) FROM users`); err != nil {
		ur.log.Error("Failed to count users", zap.Error(err))
		return 0, storageError("count users", err)
	}
	return total, nil
}

func (ur *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	query := ur.db.Rebind(`
		UPDATE users
		SET password_hash = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := ur.db.ExecContext(ctx, query, passwordHash, toMillis(updatedAt), id)
	if err != nil {
		ur.log.Error("Failed to update password", zap.Error(err), zap.Int64("user_id", id))
		return storageError("update password", err)
	}

	return requireAffected(result, "update password")
}

// Delete removes the user row; sessions follow through the foreign key.
func (ur *userRepository) Delete(ctx context.Context, id int64) error {
	query := ur.db.Rebind(`DELETE FROM users WHERE id = ?`)

	result, err := ur.db.ExecContext(ctx, query, id)
	if err != nil {
		ur.log.Error("Failed to delete user", zap.Error(err), zap.Int64("user_id", id))
		return storageError("delete user", err)
	}

	return requireAffected(result, "delete user")
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return storageError(op, err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
