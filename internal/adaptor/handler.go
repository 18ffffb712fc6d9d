package adaptor

import (
	"tcg-server/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Auth *AuthHandler
	User *UserHandler
	WS   *WSHandler
}

func NewHandler(service *usecase.Service, version string, log *zap.Logger) *Handler {
	return &Handler{
		Auth: NewAuthHandler(service.Auth, log),
		User: NewUserHandler(service.Auth, log),
		WS:   NewWSHandler(service.Auth, version, log),
	}
}
