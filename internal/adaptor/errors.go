package adaptor

import (
	"errors"
	"net/http"

	"tcg-server/internal/usecase"
	"tcg-server/pkg/utils"

	"go.uber.org/zap"
)

// Error codes sent to websocket clients.
const (
	CodeInvalidJSON        = "invalid_json"
	CodeUnknownAction      = "unknown_action"
	CodeValidationFailed   = "validation_failed"
	CodeDuplicateUsername  = "duplicate_username"
	CodeInvalidCredentials = "invalid_credentials"
	CodeRateLimited        = "rate_limited"
	CodeMissingToken       = "missing_token"
	CodeInvalidToken       = "invalid_token"
	CodeNotLoggedIn        = "not_logged_in"
	CodeServerError        = "server_error"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, usecase.ErrDuplicateUsername):
		return CodeDuplicateUsername
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, usecase.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, usecase.ErrInvalidOrExpiredToken):
		return CodeInvalidToken
	case errors.Is(err, usecase.ErrNotAuthenticated):
		return CodeNotLoggedIn
	default:
		return CodeServerError
	}
}

// writeServiceError maps a service error to an HTTP response.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	msg := usecase.UserMessage(err)

	switch {
	case errors.Is(err, usecase.ErrValidation):
		utils.ResponseBadRequest(w, msg, nil)
	case errors.Is(err, usecase.ErrDuplicateUsername):
		utils.ResponseConflict(w, msg)
	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrInvalidOrExpiredToken),
		errors.Is(err, usecase.ErrNotAuthenticated):
		utils.ResponseUnauthorized(w, msg)
	case errors.Is(err, usecase.ErrRateLimited):
		utils.ResponseTooManyRequests(w, msg)
	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, msg)
	}
}
