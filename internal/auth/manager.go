package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/mailfront/internal/instrumentation"
	"github.com/teemow/mailfront/internal/logging"
)

// Grants is the token endpoint surface a Manager needs. *Exchanger implements it.
type Grants interface {
	ExchangeCode(ctx context.Context, code string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// Manager owns the token pair of one client session.
type Manager struct {
	grants Grants
	store  Store
	audit  *instrumentation.AuditLogger
	source string
	logger *slog.Logger

	// mu serializes state transitions so concurrent refreshes do not race.
	mu sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAudit records session lifecycle events. source names the caller (cli, mcp).
func WithAudit(audit *instrumentation.AuditLogger, source string) ManagerOption {
	return func(m *Manager) {
		m.audit = audit
		m.source = source
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over grants and store.
func NewManager(grants Grants, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		grants: grants,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "session"))
	return m
}

// Login exchanges code and persists the resulting pair.
func (m *Manager) Login(ctx context.Context, code string) (TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event := instrumentation.NewAuditEvent(instrumentation.ActionLogin, m.source)
	pair, err := m.grants.ExchangeCode(ctx, code)
	if err == nil {
		err = m.store.Save(pair)
	}
	m.audit.Log(ctx, event.WithSpanContext(ctx).Complete(err))
	if err != nil {
		return TokenPair{}, err
	}

	m.logger.Info("logged in")
	return pair, nil
}

// Refresh replaces the stored access token using the stored refresh token.
// Any failure clears the session, the caller has to log in again.
func (m *Manager) Refresh(ctx context.Context) (TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.loadLocked()
	if err != nil {
		return TokenPair{}, err
	}
	return m.refreshLocked(ctx, current)
}

func (m *Manager) loadLocked() (TokenPair, error) {
	current, ok, err := m.store.Load()
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, ErrNotAuthenticated
	}
	return current, nil
}

// refreshLocked runs the refresh grant for current. m.mu must be held.
func (m *Manager) refreshLocked(ctx context.Context, current TokenPair) (TokenPair, error) {
	event := instrumentation.NewAuditEvent(instrumentation.ActionRefresh, m.source)
	pair, err := m.grants.Refresh(ctx, current.RefreshToken)
	if err == nil {
		if pair.RefreshToken == "" {
			pair.RefreshToken = current.RefreshToken
		}
		err = m.store.Save(pair)
	}
	m.audit.Log(ctx, event.WithSpanContext(ctx).Complete(err))

	if err != nil {
		m.logger.Warn("token refresh failed, clearing session", logging.Err(err))
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Error("failed to clear session", logging.Err(clearErr))
		}
		return TokenPair{}, err
	}

	m.logger.Debug("access token refreshed",
		slog.String("access_token", logging.SanitizeToken(pair.AccessToken)))
	return pair, nil
}

// Store persists pair as the current session.
func (m *Manager) Store(pair TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(pair)
}

// Load returns the stored pair.
func (m *Manager) Load() (TokenPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load()
}

// Clear logs out. It succeeds when no session exists.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Clear()
	m.audit.Log(ctx, instrumentation.NewAuditEvent(instrumentation.ActionLogout, m.source).Complete(err))
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// State reports whether a session is stored.
func (m *Manager) State() State {
	_, ok, err := m.Load()
	if err != nil || !ok {
		return Unauthenticated
	}
	return Authenticated
}

// AccessToken returns the stored access token.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	pair, ok, err := m.Load()
	if err != nil {
		return "", err
	}
	if !ok || pair.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return pair.AccessToken, nil
}

// RefreshAccessToken returns an access token to replace rejected. When the
// stored token already differs from rejected, another caller refreshed it in
// the meantime and it is returned without a new grant.
func (m *Manager) RefreshAccessToken(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.loadLocked()
	if err != nil {
		return "", err
	}
	if current.AccessToken != "" && current.AccessToken != rejected {
		return current.AccessToken, nil
	}

	pair, err := m.refreshLocked(ctx, current)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}
