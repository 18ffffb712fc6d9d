package wire

import (
	"tcg-server/internal/adaptor"
	"tcg-server/internal/usecase"
	"tcg-server/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireUser mounts the account routes; all of them need a live session.
func wireUser(r chi.Router, userHandler *adaptor.UserHandler, auth usecase.AuthService, log *zap.Logger) {
	r.With(middleware.AuthSession(auth, log)).Route("/api/users/me", func(r chi.Router) {
		r.Get("/", userHandler.GetProfile)
		r.Put("/password", userHandler.ChangePassword)
		r.Delete("/", userHandler.DeleteAccount)
	})
}
