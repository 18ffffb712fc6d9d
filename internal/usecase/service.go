package usecase

import (
	"tcg-server/internal/data/repository"
	"tcg-server/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth    AuthService
	Sweeper *SessionSweeper
}

func NewService(repo *repository.Repository, tokens *utils.TokenCodec, config *utils.Config, log *zap.Logger) *Service {
	auth := NewAuthService(repo, tokens, config, log)

	return &Service{
		Auth:    auth,
		Sweeper: NewSessionSweeper(auth, config.Session.SweepInterval, log),
	}
}
