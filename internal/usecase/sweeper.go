package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultSweepInterval = 10 * time.Minute

// SessionSweeper periodically marks expired sessions inactive and purges
// old inactive rows. Run blocks until ctx is done.
type SessionSweeper struct {
	auth     AuthService
	interval time.Duration
	log      *zap.Logger
}

func NewSessionSweeper(auth AuthService, interval time.Duration, log *zap.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionSweeper{
		auth:     auth,
		interval: interval,
		log:      log.With(zap.String("worker", "session_sweeper")),
	}
}

func (w *SessionSweeper) Run(ctx context.Context) {
	w.log.Info("Session sweeper started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep errors are already logged by the service
func (w *SessionSweeper) sweep(ctx context.Context) {
	if _, err := w.auth.SweepExpiredSessions(ctx); err != nil {
		return
	}
	_, _ = w.auth.PurgeSessions(ctx)
}
