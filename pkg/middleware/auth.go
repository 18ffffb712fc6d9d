package middleware

import (
	"errors"
	"net/http"
	"strings"

	"tcg-server/internal/usecase"
	"tcg-server/pkg/utils"

	"go.uber.org/zap"
)

// AuthSession resolves "Authorization: Bearer <token>" to a live session and
// stores the user id and token in the request context.
func AuthSession(auth usecase.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			userID, err := auth.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, usecase.ErrStorage) {
					utils.ResponseInternalError(w, usecase.UserMessage(err))
					return
				}
				logger.Debug("Rejected session token",
					zap.String("path", r.URL.Path),
					zap.String("request_id", utils.GetRequestID(r.Context())))
				utils.ResponseUnauthorized(w, usecase.UserMessage(err))
				return
			}

			ctx := utils.SetUserContext(r.Context(), userID, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
