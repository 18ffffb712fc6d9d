package usecase

import (
	"errors"
)

// Error kinds returned by the auth services. Match them with errors.Is;
// the error text itself is safe to show to the player.
var (
	// ErrValidation indicates malformed client input (empty fields,
	// mismatched confirmation, weak password, short username).
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateUsername indicates the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials indicates a wrong username or password. The two
	// cases are never distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrExpiredToken indicates a token that is malformed, was not
	// minted with this server's secret, or whose session is no longer live.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrNotAuthenticated indicates an operation that needs a session was
	// called without a token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRateLimited indicates the username is temporarily locked after too
	// many failed logins.
	ErrRateLimited = errors.New("rate limited")

	// ErrStorage indicates a persistence failure. Details are logged, never returned.
	ErrStorage = errors.New("storage error")
)

const (
	MsgInternalError      = "internal server error, please try again later"
	MsgInvalidCredentials = "invalid username or password"
	MsgDuplicateUsername  = "username already exists"
	MsgRateLimited        = "too many failed login attempts, please try again later"
	MsgLoginRequired      = "login required"
	MsgInvalidSession     = "invalid or expired session, please log in again"
	MsgWrongPassword      = "current password is incorrect"
	MsgIncorrectPassword  = "incorrect password"
)

// AuthError pairs an error kind with a user facing message.
type AuthError struct {
	Kind    error
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Kind }

func newAuthError(kind error, message string) error {
	return &AuthError{Kind: kind, Message: message}
}

// UserMessage returns display text for err; unknown errors become a generic message.
func UserMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return MsgInternalError
}
