package entity

import "time"

// LoginAttempt tracks consecutive failed logins for one username.
type LoginAttempt struct {
	Username     string     `db:"username"`
	FailedCount  int        `db:"failed_count"`
	LastFailedAt time.Time  `db:"last_failed_at"`
	LockedUntil  *time.Time `db:"locked_until"`
}

func (a *LoginAttempt) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}
