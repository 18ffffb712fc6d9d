package entity

import "time"

// Session binds a bearer token to a user until ExpiresAt or until it is
// invalidated. Invalidated rows are kept for auditing.
type Session struct {
	BaseSimple
	UserID    int64     `db:"user_id"`
	Token     string    `db:"session_token"`
	ExpiresAt time.Time `db:"expires_at"`
	IPAddress *string   `db:"ip_address"`
	IsActive  bool      `db:"is_active"`
}

// Valid reports whether the session still authenticates at now.
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
