package usecase

import (
	"context"
	"errors"
	"sync"

	"tcg-server/internal/dto/request"
	"tcg-server/internal/dto/response"

	"go.uber.org/zap"
)

type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "AUTHENTICATED"
	}
	return "ANONYMOUS"
}

// AuthManager holds the current token for one client connection and
// re-validates it against the store on every check. Create one per
// connection; it is safe for concurrent use by that connection's goroutines.
type AuthManager struct {
	auth AuthService
	log  *zap.Logger

	mu        sync.Mutex
	token     string
	validated bool
}

func NewAuthManager(auth AuthService, log *zap.Logger) *AuthManager {
	return &AuthManager{
		auth: auth,
		log:  log,
	}
}

// SetToken installs a token presented by the client. It stays unvalidated
// until the next successful check.
func (m *AuthManager) SetToken(token string) {
	m.mu.Lock()
	if m.token != token {
		m.token = token
		m.validated = false
	}
	m.mu.Unlock()
}

func (m *AuthManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// State reports AUTHENTICATED when the held token was valid at the last
// check. It does not hit the store.
func (m *AuthManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" || !m.validated {
		return StateAnonymous
	}
	return StateAuthenticated
}

func (m *AuthManager) Register(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error) {
	return m.auth.Register(ctx, req)
}

func (m *AuthManager) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	resp, err := m.auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.token = resp.Token
	m.validated = true
	m.mu.Unlock()
	return resp, nil
}

// Logout invalidates the held token, if any, and forgets it. It always
// succeeds from the caller's point of view.
func (m *AuthManager) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.token = ""
	m.validated = false
	m.mu.Unlock()

	if token == "" {
		return
	}

	if err := m.auth.Logout(ctx, token); err != nil {
		m.log.Warn("Logout could not invalidate session", zap.Error(err))
	}
}

func (m *AuthManager) IsLoggedIn(ctx context.Context) bool {
	_, ok := m.CurrentUserID(ctx)
	return ok
}

// CurrentUserID re-validates the held token. A rejected token is dropped;
// a storage failure keeps it and reports not logged in.
func (m *AuthManager) CurrentUserID(ctx context.Context) (int64, bool) {
	token := m.Token()
	if token == "" {
		return 0, false
	}

	userID, err := m.auth.ValidateToken(ctx, token)
	if err != nil {
		m.dropOnRejection(token, err)
		return 0, false
	}
	m.markValidated(token)
	return userID, true
}

// UserInfo returns the profile behind the held token. Storage failures are
// returned as such and keep the token.
func (m *AuthManager) UserInfo(ctx context.Context) (*response.UserResponse, error) {
	token := m.Token()
	if token == "" {
		return nil, newAuthError(ErrNotAuthenticated, MsgLoginRequired)
	}

	user, err := m.auth.GetUserInfo(ctx, token)
	if err != nil {
		m.dropOnRejection(token, err)
		return nil, err
	}
	m.markValidated(token)
	return user, nil
}

func (m *AuthManager) ChangePassword(ctx context.Context, req *request.ChangePasswordRequest) error {
	token := m.Token()
	if token == "" {
		return newAuthError(ErrNotAuthenticated, MsgLoginRequired)
	}

	err := m.auth.ChangePassword(ctx, token, req)
	m.dropOnRejection(token, err)
	return err
}

// DeleteAccount removes the account behind the held token and logs out.
func (m *AuthManager) DeleteAccount(ctx context.Context, req *request.DeleteAccountRequest) error {
	token := m.Token()
	if token == "" {
		return newAuthError(ErrNotAuthenticated, MsgLoginRequired)
	}

	if err := m.auth.DeleteAccount(ctx, token, req); err != nil {
		m.dropOnRejection(token, err)
		return err
	}

	m.Logout(ctx)
	return nil
}

// dropOnRejection clears token when err says the session is gone, unless a
// newer token was installed meanwhile.
func (m *AuthManager) dropOnRejection(token string, err error) {
	if !errors.Is(err, ErrInvalidOrExpiredToken) && !errors.Is(err, ErrNotAuthenticated) {
		if errors.Is(err, ErrStorage) {
			m.log.Warn("Session check failed on storage, keeping token")
		}
		return
	}

	m.mu.Lock()
	if m.token == token {
		m.token = ""
		m.validated = false
	}
	m.mu.Unlock()
}

func (m *AuthManager) markValidated(token string) {
	m.mu.Lock()
	if m.token == token {
		m.validated = true
	}
	m.mu.Unlock()
}
