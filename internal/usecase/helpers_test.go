package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tcg-server/internal/data/repository"
	"tcg-server/internal/dto/request"
	"tcg-server/pkg/database"
	"tcg-server/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("usecase-test-secret")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db     *sqlx.DB
	auth   AuthService
	tokens *utils.TokenCodec
	clock  *fakeClock
	config *utils.Config
}

func testConfig() *utils.Config {
	return &utils.Config{
		Session: utils.SessionConfig{
			Lifetime:  2 * time.Hour,
			Retention: 7 * 24 * time.Hour,
		},
		Security: utils.SecurityConfig{
			MaxLoginAttempts: 3,
			LockoutDuration:  15 * time.Minute,
			HashCost:         bcrypt.MinCost,
		},
	}
}

func newTestEnv(t *testing.T, config *utils.Config) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := repository.NewRepository(db, zap.NewNop(),
		repository.WithHashCost(config.Security.HashCost),
		repository.WithClock(clock.Now),
	)

	tokens := utils.NewTokenCodec(testSecret)
	auth := NewAuthService(repo, tokens, config, zap.NewNop())
	auth.(*authService).now = clock.Now

	return &testEnv{db: db, auth: auth, tokens: tokens, clock: clock, config: config}
}

func registerReq(username, password string) *request.RegisterRequest {
	return &request.RegisterRequest{
		Username:        username,
		Password:        password,
		ConfirmPassword: password,
	}
}

func loginReq(username, password string) *request.LoginRequest {
	return &request.LoginRequest{Username: username, Password: password}
}

func (e *testEnv) mustRegister(t *testing.T, username, password string) int64 {
	t.Helper()
	user, err := e.auth.Register(context.Background(), registerReq(username, password))
	require.NoError(t, err)
	return user.ID
}

func (e *testEnv) mustLogin(t *testing.T, username, password string) string {
	t.Helper()
	resp, err := e.auth.Login(context.Background(), loginReq(username, password))
	require.NoError(t, err)
	return resp.Token
}
