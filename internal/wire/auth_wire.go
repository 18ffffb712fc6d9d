package wire

import (
	"tcg-server/internal/adaptor"
	"tcg-server/internal/usecase"
	"tcg-server/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAuth(r chi.Router, authHandler *adaptor.AuthHandler, auth usecase.AuthService, log *zap.Logger) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.With(middleware.AuthSession(auth, log)).Post("/logout", authHandler.Logout)
	})
}
