package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"secdash/internal/authclient"
	"secdash/internal/credstore"
	"secdash/internal/model"
)

var (
	// ErrBusy rejects a second login/bootstrap while one is in flight.
	ErrBusy = errors.New("session operation already in flight")
	// ErrInvalidState rejects login outside unauthenticated/expired.
	ErrInvalidState = errors.New("operation not allowed in current session state")
)

// AuthService is the remote collaborator contract the manager verifies
// credentials against.
type AuthService interface {
	Login(ctx context.Context, email, password string) (authclient.LoginResult, error)
	Register(ctx context.Context, username, email, password string) error
	Verify(ctx context.Context, token string) (model.User, error)
}

// Manager owns authentication state and is the single writer of the
// credential store. At most one login or bootstrap verification runs at a
// time; a concurrent second call fails with ErrBusy. Every in-flight
// verification is tagged with the generation at launch so a result landing
// after Logout is discarded instead of resurrecting the session.
type Manager struct {
	auth   AuthService
	creds  credstore.Store
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	busy       bool
	generation uint64
	status     model.SessionStatus
	token      string
	user       *model.User
	lastError  string
}

func NewManager(auth AuthService, creds credstore.Store, logger *slog.Logger) *Manager {
	return &Manager{
		auth:   auth,
		creds:  creds,
		logger: logger,
		now:    time.Now,
		status: model.StatusUnauthenticated,
	}
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() model.Session {
	s := model.Session{
		Status:    m.status,
		Token:     m.token,
		LastError: m.lastError,
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// Token implements authclient.TokenSource for outbound request decoration.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Bootstrap restores a persisted session at startup. A missing or provably
// expired token ends in unauthenticated; otherwise the token is verified
// against the auth service before the session is published.
func (m *Manager) Bootstrap(ctx context.Context) error {
	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.finish()

	token, err := m.creds.Get(ctx)
	if err != nil {
		m.settle(gen, func() {
			m.status = model.StatusUnauthenticated
		})
		return err
	}
	if token == "" {
		m.settle(gen, func() {
			m.status = model.StatusUnauthenticated
		})
		return nil
	}
	if authclient.TokenExpired(token, m.now()) {
		if err := m.creds.Clear(ctx); err != nil && m.logger != nil {
			m.logger.Warn("credential clear failed", "err", err)
		}
		m.settle(gen, func() {
			m.status = model.StatusUnauthenticated
			m.token = ""
			m.user = nil
		})
		return nil
	}

	m.settle(gen, func() {
		m.status = model.StatusAuthenticating
		m.token = token
	})

	user, verifyErr := m.auth.Verify(ctx, token)
	if verifyErr != nil {
		if err := m.creds.Clear(ctx); err != nil && m.logger != nil {
			m.logger.Warn("credential clear failed", "err", err)
		}
		m.settle(gen, func() {
			m.status = model.StatusUnauthenticated
			m.token = ""
			m.user = nil
			m.lastError = userMessage(verifyErr)
		})
		if m.logger != nil {
			m.logger.Info("stored session rejected", "err", verifyErr)
		}
		return nil
	}
	stale := !m.settle(gen, func() {
		m.status = model.StatusAuthenticated
		m.user = &user
		m.lastError = ""
	})
	if stale && m.logger != nil {
		m.logger.Debug("discarded stale bootstrap result")
	}
	return nil
}

// Login authenticates against the auth service. Failures are reported as
// return values and leave the prior state untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.status != model.StatusUnauthenticated && m.status != model.StatusExpired {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.busy = true
	gen := m.generation
	prior := m.status
	m.status = model.StatusAuthenticating
	m.mu.Unlock()
	defer m.finish()

	result, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.settle(gen, func() {
			m.status = prior
			m.lastError = userMessage(err)
		})
		return err
	}
	if err := m.creds.Set(ctx, result.Token); err != nil {
		m.settle(gen, func() {
			m.status = prior
			m.lastError = "Login failed"
		})
		return err
	}
	stale := !m.settle(gen, func() {
		m.status = model.StatusAuthenticated
		m.token = result.Token
		user := result.User
		m.user = &user
		m.lastError = ""
	})
	if stale {
		// Logout won the race; the persisted token must not survive it.
		if err := m.creds.Clear(ctx); err != nil && m.logger != nil {
			m.logger.Warn("credential clear failed", "err", err)
		}
		return nil
	}
	if m.logger != nil {
		m.logger.Info("login succeeded", "email", email)
	}
	return nil
}

// Register is a stateless pass-through; it never touches session state.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	err := m.auth.Register(ctx, username, email, password)
	if err != nil {
		m.mu.Lock()
		m.lastError = userMessage(err)
		m.mu.Unlock()
	}
	return err
}

// Logout resets to unauthenticated unconditionally and invalidates any
// in-flight verification.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.generation++
	m.status = model.StatusUnauthenticated
	m.token = ""
	m.user = nil
	m.lastError = ""
	m.mu.Unlock()
	if err := m.creds.Clear(context.Background()); err != nil && m.logger != nil {
		m.logger.Warn("credential clear failed", "err", err)
	}
}

// Revalidate runs the wall-clock expiry check against the token's embedded
// claim. An authenticated session whose token has lapsed moves to expired,
// keeping the token so the caller can show why before logging out.
func (m *Manager) Revalidate() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == model.StatusAuthenticated && m.token != "" {
		if authclient.TokenExpired(m.token, m.now()) {
			m.status = model.StatusExpired
			m.user = nil
			m.lastError = "Session expired"
		}
	}
	return m.snapshotLocked()
}

func (m *Manager) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return 0, ErrBusy
	}
	m.busy = true
	return m.generation, nil
}

func (m *Manager) finish() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// settle applies a state mutation only if no logout superseded the operation
// that produced it. Returns false when the result was discarded.
func (m *Manager) settle(gen uint64, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	apply()
	return true
}

func userMessage(err error) string {
	var authErr *authclient.Error
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return "Authentication failed"
}
