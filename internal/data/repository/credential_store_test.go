package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tcg-server/internal/data/entity"
	"tcg-server/pkg/database"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func newTestStore(t *testing.T) (CredentialStore, *Repository, *testClock) {
	t.Helper()

	db := openTestDB(t)
	clock := newTestClock()
	repo := NewRepository(db, zap.NewNop(), WithHashCost(bcrypt.MinCost), WithClock(clock.Now))
	return repo.Credentials, repo, clock
}

func saveSession(t *testing.T, store CredentialStore, userID int64, token string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, store.SaveSession(context.Background(), &entity.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}))
}

func TestCredentialStore_CreateAndAuthenticate(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := store.Authenticate(ctx, "alice", "pass123")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	user, err := store.GetUser(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "pass123", user.PasswordHash)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestCredentialStore_AuthenticateFailures(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "alice", password: "pass124"},
		{name: "unknown user", username: "bob", password: "pass123"},
		{name: "empty password", username: "alice", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Authenticate(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestCredentialStore_DuplicateUsername(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	firstID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, "alice", "other456")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.NotErrorIs(t, err, ErrStorage)

	total, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	// the first password still works, the second one never landed
	id, err := store.Authenticate(ctx, "alice", "pass123")
	require.NoError(t, err)
	assert.Equal(t, firstID, id)

	_, err = store.Authenticate(ctx, "alice", "other456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCredentialStore_GetUserMissing(t *testing.T) {
	store, _, _ := newTestStore(t)

	user, err := store.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCredentialStore_SessionLifecycle(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	saveSession(t, store, userID, "token-a", clock.Now().Add(2*time.Hour))

	got, ok, err := store.ValidateSession(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	_, ok, err = store.ValidateSession(ctx, "token-unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.InvalidateSession(ctx, "token-a"))
	require.NoError(t, store.InvalidateSession(ctx, "token-a"))
	require.NoError(t, store.InvalidateSession(ctx, "never-existed"))

	_, ok, err = store.ValidateSession(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialStore_ValidateDoesNotExtendExpiry(t *testing.T) {
	store, repo, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	expiresAt := clock.Now().Add(time.Hour)
	saveSession(t, store, userID, "token-a", expiresAt)

	_, ok, err := store.ValidateSession(ctx, "token-a")
	require.NoError(t, err)
	require.True(t, ok)

	session, err := repo.Session.FindByToken(ctx, "token-a")
	require.NoError(t, err)
	assert.Equal(t, expiresAt.UnixMilli(), session.ExpiresAt.UnixMilli())

	clock.Advance(time.Hour)
	_, ok, err = store.ValidateSession(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok, "expires_at equal to now is no longer valid")
}

func TestCredentialStore_ExpiryAndSweep(t *testing.T) {
	store, repo, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	saveSession(t, store, userID, "expired", clock.Now().Add(-time.Minute))
	saveSession(t, store, userID, "live", clock.Now().Add(time.Hour))

	// expired but still flagged active: never valid
	_, ok, err := store.ValidateSession(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, ok)

	swept, err := store.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)

	expired, err := repo.Session.FindByToken(ctx, "expired")
	require.NoError(t, err)
	require.NotNil(t, expired)
	assert.False(t, expired.IsActive)

	live, err := repo.Session.FindByToken(ctx, "live")
	require.NoError(t, err)
	assert.True(t, live.IsActive)

	swept, err = store.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)

	clock.Advance(2 * time.Hour)
	swept, err = store.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)
}

func TestCredentialStore_PurgeSessions(t *testing.T) {
	store, repo, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	saveSession(t, store, userID, "old", clock.Now().Add(-10*24*time.Hour))
	saveSession(t, store, userID, "recent", clock.Now().Add(-time.Hour))
	saveSession(t, store, userID, "live", clock.Now().Add(time.Hour))

	_, err = store.SweepExpiredSessions(ctx)
	require.NoError(t, err)

	purged, err := store.PurgeSessions(ctx, clock.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	old, err := repo.Session.FindByToken(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)

	recent, err := repo.Session.FindByToken(ctx, "recent")
	require.NoError(t, err)
	assert.NotNil(t, recent)
}

func TestCredentialStore_ConcurrentSessions(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	saveSession(t, store, userID, "token-a", clock.Now().Add(time.Hour))
	saveSession(t, store, userID, "token-b", clock.Now().Add(time.Hour))

	require.NoError(t, store.InvalidateSession(ctx, "token-a"))

	_, ok, err := store.ValidateSession(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := store.ValidateSession(ctx, "token-b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestCredentialStore_SaveSessionDuplicateToken(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	saveSession(t, store, userID, "token-a", clock.Now().Add(time.Hour))

	err = store.SaveSession(ctx, &entity.Session{
		UserID:    userID,
		Token:     "token-a",
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestCredentialStore_SaveSessionRecordsIP(t *testing.T) {
	store, repo, clock := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	ip := "10.0.0.7"
	require.NoError(t, store.SaveSession(ctx, &entity.Session{
		UserID:    userID,
		Token:     "token-a",
		ExpiresAt: clock.Now().Add(time.Hour),
		IPAddress: &ip,
	}))

	session, err := repo.Session.FindByToken(ctx, "token-a")
	require.NoError(t, err)
	require.NotNil(t, session.IPAddress)
	assert.Equal(t, ip, *session.IPAddress)
	assert.Equal(t, clock.Now().UnixMilli(), session.CreatedAt.UnixMilli())
}

func TestCredentialStore_UpdatePassword(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)

	require.NoError(t, store.UpdatePassword(ctx, userID, "newpass456"))

	_, err = store.Authenticate(ctx, "alice", "pass123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := store.Authenticate(ctx, "alice", "newpass456")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	assert.ErrorIs(t, store.UpdatePassword(ctx, userID+100, "newpass456"), ErrUserNotFound)
}

func TestCredentialStore_DeleteUserCascades(t *testing.T) {
	store, repo, clock := newTestStore(t)
	ctx := context.Background()

	aliceID, err := store.CreateUser(ctx, "alice", "pass123")
	require.NoError(t, err)
	bobID, err := store.CreateUser(ctx, "bob", "pass123")
	require.NoError(t, err)

	saveSession(t, store, aliceID, "alice-token", clock.Now().Add(time.Hour))
	saveSession(t, store, bobID, "bob-token", clock.Now().Add(time.Hour))
	_, err = store.RecordLoginFailure(ctx, "alice", clock.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, aliceID))

	user, err := store.GetUser(ctx, aliceID)
	require.NoError(t, err)
	assert.Nil(t, user)

	session, err := repo.Session.FindByToken(ctx, "alice-token")
	require.NoError(t, err)
	assert.Nil(t, session)

	attempt, err := repo.LoginAttempt.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, attempt)

	_, ok, err := store.ValidateSession(ctx, "bob-token")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, store.DeleteUser(ctx, aliceID), ErrUserNotFound)

	// the username is free again
	_, err = store.CreateUser(ctx, "alice", "pass123")
	assert.NoError(t, err)
}

func TestCredentialStore_LoginFailures(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()
	window := func() time.Time { return clock.Now().Add(-24 * time.Hour) }

	for want := 1; want <= 3; want++ {
		got, err := store.RecordLoginFailure(ctx, "alice", window())
		require.NoError(t, err)
		assert.Equal(t, want, got)
		clock.Advance(time.Second)
	}

	until, err := store.LoginLockedUntil(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	lockUntil := clock.Now().Add(15 * time.Minute)
	require.NoError(t, store.LockLogin(ctx, "alice", lockUntil))

	until, err = store.LoginLockedUntil(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, lockUntil.UnixMilli(), until.UnixMilli())

	clock.Advance(16 * time.Minute)
	until, err = store.LoginLockedUntil(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, until.IsZero(), "lock has expired")

	// a failure after the window starts a new streak
	clock.Advance(25 * time.Hour)
	got, err := store.RecordLoginFailure(ctx, "alice", window())
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	require.NoError(t, store.ResetLoginFailures(ctx, "alice"))
	got, err = store.RecordLoginFailure(ctx, "alice", window())
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}
