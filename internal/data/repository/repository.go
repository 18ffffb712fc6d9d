package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Repository struct {
	User         UserRepository
	Session      SessionRepository
	LoginAttempt LoginAttemptRepository
	Credentials  CredentialStore
}

func NewRepository(db *sqlx.DB, log *zap.Logger, opts ...StoreOption) *Repository {
	return &Repository{
		User:         NewUserRepository(db, log),
		Session:      NewSessionRepository(db, log),
		LoginAttempt: NewLoginAttemptRepository(db, log),
		Credentials:  NewCredentialStore(db, log, opts...),
	}
}
