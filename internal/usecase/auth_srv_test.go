package usecase

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"tcg-server/internal/dto/request"
	"tcg-server/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     *request.RegisterRequest
		wantMsg string
	}{
		{
			name:    "short username",
			req:     registerReq("ab", "pass123"),
			wantMsg: "username must be at least 3 characters",
		},
		{
			name:    "blank username after trim",
			req:     registerReq("   ", "pass123"),
			wantMsg: "username is required",
		},
		{
			name:    "short password",
			req:     registerReq("alice", "p1"),
			wantMsg: "password must be at least 6 characters",
		},
		{
			name:    "letters only",
			req:     registerReq("alice", "password"),
			wantMsg: "password must contain at least one number and one letter",
		},
		{
			name:    "digits only",
			req:     registerReq("alice", "123456"),
			wantMsg: "password must contain at least one number and one letter",
		},
		{
			name: "confirmation mismatch",
			req: &request.RegisterRequest{
				Username:        "alice",
				Password:        "pass123",
				ConfirmPassword: "pass321",
			},
			wantMsg: "passwords do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			ctx := context.Background()

			user, err := env.auth.Register(ctx, tt.req)

			assert.Nil(t, user)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.wantMsg, UserMessage(err))

			total, err := env.auth.CountUsers(ctx)
			require.NoError(t, err)
			assert.Zero(t, total, "storage untouched")
		})
	}
}

func TestAuthService_RegisterAndDuplicate(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	user, err := env.auth.Register(ctx, registerReq("  alice  ", "pass123"))
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Positive(t, user.ID)
	assert.Equal(t, env.clock.Now().UnixMilli(), user.CreatedAt.UnixMilli())

	_, err = env.auth.Register(ctx, registerReq("alice", "other456"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Equal(t, MsgDuplicateUsername, UserMessage(err))

	total, err := env.auth.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	userID := env.mustRegister(t, "alice", "pass123")

	resp, err := env.auth.Login(ctx, &request.LoginRequest{
		Username:  "alice",
		Password:  "pass123",
		IPAddress: "127.0.0.1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, userID, resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, env.clock.Now().Add(2*time.Hour), resp.ExpiresAt)

	got, err := env.auth.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAuthService_LoginFailures(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.mustRegister(t, "alice", "pass123")

	tests := []struct {
		name     string
		req      *request.LoginRequest
		wantKind error
		wantMsg  string
	}{
		{
			name:     "wrong password",
			req:      loginReq("alice", "wrong123"),
			wantKind: ErrInvalidCredentials,
			wantMsg:  MsgInvalidCredentials,
		},
		{
			name:     "unknown user",
			req:      loginReq("nobody", "pass123"),
			wantKind: ErrInvalidCredentials,
			wantMsg:  MsgInvalidCredentials,
		},
		{
			name:     "empty username",
			req:      loginReq("", "pass123"),
			wantKind: ErrValidation,
			wantMsg:  "username and password are required",
		},
		{
			name:     "empty password",
			req:      loginReq("alice", ""),
			wantKind: ErrValidation,
			wantMsg:  "username and password are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.auth.Login(context.Background(), tt.req)

			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantMsg, UserMessage(err))
		})
	}
}

func TestAuthService_Lockout(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")

	for range 3 {
		_, err := env.auth.Login(ctx, loginReq("alice", "wrong123"))
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// locked even with the right password
	_, err := env.auth.Login(ctx, loginReq("alice", "pass123"))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, MsgRateLimited, UserMessage(err))

	env.clock.Advance(16 * time.Minute)
	env.mustLogin(t, "alice", "pass123")

	// a successful login clears the streak
	for range 2 {
		_, err := env.auth.Login(ctx, loginReq("alice", "wrong123"))
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	env.mustLogin(t, "alice", "pass123")
}

func TestAuthService_LockoutDisabled(t *testing.T) {
	config := testConfig()
	config.Security.MaxLoginAttempts = 0
	env := newTestEnv(t, config)
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")

	for range 10 {
		_, err := env.auth.Login(ctx, loginReq("alice", "wrong123"))
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	env.mustLogin(t, "alice", "pass123")
}

func TestLockoutDuration(t *testing.T) {
	base := 15 * time.Minute

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{failures: 1, want: 0},
		{failures: 2, want: 0},
		{failures: 3, want: base},
		{failures: 4, want: 2 * base},
		{failures: 5, want: 4 * base},
		{failures: 50, want: maxLockout},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, lockoutDuration(tt.failures, 3, base), "failures=%d", tt.failures)
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	userID := env.mustRegister(t, "alice", "pass123")
	token := env.mustLogin(t, "alice", "pass123")

	t.Run("empty", func(t *testing.T) {
		_, err := env.auth.ValidateToken(ctx, "")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := env.auth.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("tampered", func(t *testing.T) {
		decoded, err := base64.StdEncoding.DecodeString(token)
		require.NoError(t, err)
		parts := strings.Split(string(decoded), ":")
		parts[0] = "999"
		forged := base64.StdEncoding.EncodeToString([]byte(strings.Join(parts, ":")))

		_, err = env.auth.ValidateToken(ctx, forged)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("well formed but never issued", func(t *testing.T) {
		_, err := env.auth.ValidateToken(ctx, env.tokens.Generate(userID))
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("minted with another secret", func(t *testing.T) {
		foreign := utils.NewTokenCodec([]byte("someone-else")).Generate(userID)
		_, err := env.auth.ValidateToken(ctx, foreign)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("valid", func(t *testing.T) {
		got, err := env.auth.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})
}

func TestAuthService_SessionExpiry(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")
	token := env.mustLogin(t, "alice", "pass123")

	env.clock.Advance(2*time.Hour - time.Second)
	_, err := env.auth.ValidateToken(ctx, token)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	_, err = env.auth.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	swept, err := env.auth.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)
}

func TestAuthService_Logout(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")
	first := env.mustLogin(t, "alice", "pass123")
	second := env.mustLogin(t, "alice", "pass123")
	assert.NotEqual(t, first, second)

	require.NoError(t, env.auth.Logout(ctx, first))
	require.NoError(t, env.auth.Logout(ctx, first))
	require.NoError(t, env.auth.Logout(ctx, ""))
	require.NoError(t, env.auth.Logout(ctx, "unknown"))

	_, err := env.auth.ValidateToken(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = env.auth.ValidateToken(ctx, second)
	assert.NoError(t, err, "other sessions of the same user stay valid")
}

func TestAuthService_GetUserInfo(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	userID := env.mustRegister(t, "alice", "pass123")
	token := env.mustLogin(t, "alice", "pass123")

	user, err := env.auth.GetUserInfo(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "alice", user.Username)

	_, err = env.auth.GetUserInfo(ctx, "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")
	token := env.mustLogin(t, "alice", "pass123")

	err := env.auth.ChangePassword(ctx, token, &request.ChangePasswordRequest{
		OldPassword:     "wrong123",
		NewPassword:     "newpass456",
		ConfirmPassword: "newpass456",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, MsgWrongPassword, UserMessage(err))

	err = env.auth.ChangePassword(ctx, token, &request.ChangePasswordRequest{
		OldPassword:     "pass123",
		NewPassword:     "newpass456",
		ConfirmPassword: "newpass789",
	})
	assert.ErrorIs(t, err, ErrValidation)

	err = env.auth.ChangePassword(ctx, token, &request.ChangePasswordRequest{
		OldPassword:     "pass123",
		NewPassword:     "weakpass",
		ConfirmPassword: "weakpass",
	})
	assert.ErrorIs(t, err, ErrValidation)

	err = env.auth.ChangePassword(ctx, "", &request.ChangePasswordRequest{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, env.auth.ChangePassword(ctx, token, &request.ChangePasswordRequest{
		OldPassword:     "pass123",
		NewPassword:     "newpass456",
		ConfirmPassword: "newpass456",
	}))

	_, err = env.auth.Login(ctx, loginReq("alice", "pass123"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	env.mustLogin(t, "alice", "newpass456")
}

func TestAuthService_DeleteAccount(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")
	token := env.mustLogin(t, "alice", "pass123")
	other := env.mustLogin(t, "alice", "pass123")

	err := env.auth.DeleteAccount(ctx, token, &request.DeleteAccountRequest{Password: "wrong123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, MsgIncorrectPassword, UserMessage(err))

	err = env.auth.DeleteAccount(ctx, token, &request.DeleteAccountRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.auth.DeleteAccount(ctx, token, &request.DeleteAccountRequest{Password: "pass123"}))

	for _, tok := range []string{token, other} {
		_, err = env.auth.ValidateToken(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}

	_, err = env.auth.Login(ctx, loginReq("alice", "pass123"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	env.mustRegister(t, "alice", "fresh789")
}

func TestAuthService_StorageFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")
	token := env.mustLogin(t, "alice", "pass123")

	require.NoError(t, env.db.Close())

	_, err := env.auth.Login(ctx, loginReq("alice", "pass123"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, MsgInternalError, err.Error())

	_, err = env.auth.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = env.auth.Register(ctx, registerReq("bob", "pass123"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, MsgInternalError, UserMessage(err))

	_, err = env.auth.CountUsers(ctx)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestAuthService_PurgeSessions(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.mustRegister(t, "alice", "pass123")
	env.mustLogin(t, "alice", "pass123")

	env.clock.Advance(3 * time.Hour)
	_, err := env.auth.SweepExpiredSessions(ctx)
	require.NoError(t, err)

	purged, err := env.auth.PurgeSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged, "still inside retention")

	env.clock.Advance(8 * 24 * time.Hour)
	purged, err = env.auth.PurgeSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestAuthService_PurgeDisabled(t *testing.T) {
	config := testConfig()
	config.Session.Retention = 0
	env := newTestEnv(t, config)

	purged, err := env.auth.PurgeSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgLoginRequired, UserMessage(newAuthError(ErrNotAuthenticated, MsgLoginRequired)))
	assert.Equal(t, MsgInternalError, UserMessage(assert.AnError))
}

func TestAuthService_LogsValidationFailures(t *testing.T) {
	env := newTestEnv(t, testConfig())
	core, logs := observer.New(zapcore.DebugLevel)
	env.auth.(*authService).log = zap.New(core)

	req := &request.RegisterRequest{}
	_, err := env.auth.Register(context.Background(), req)
	require.ErrorIs(t, err, ErrValidation)

	entries := logs.FilterMessage("Register validation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, utils.FormatValidationErrors(utils.ValidateStruct(req)), entries[0].ContextMap()["errors"])
	assert.Contains(t, entries[0].ContextMap()["errors"], "; ")
}
