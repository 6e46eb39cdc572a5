// internal/session/manager.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codepanel-client/internal/api"
	"codepanel-client/internal/domain/auth"
	xerrors "codepanel-client/internal/pkg/errors"
	"codepanel-client/internal/pkg/jwt"

	"go.uber.org/zap"
)

// Listener receives the new session on every change; nil means logged out.
type Listener func(*auth.Session)

// Manager owns the process's single authenticated session. It refreshes the
// access token proactively on a timer and reactively when the API client
// reports an unauthorized response. A failed refresh always tears the session
// down; it is never retried.
type Manager struct {
	api           *api.Client
	log           *zap.Logger
	checkInterval time.Duration
	now           func() time.Time

	mu   sync.RWMutex
	sess *auth.Session

	listenerMu sync.Mutex
	listeners  map[uint64]Listener
	nextID     uint64

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Manager)

// WithCheckInterval overrides the proactive expiry-check period.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.checkInterval = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(client *api.Client, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		api:           client,
		log:           logger,
		checkInterval: 60 * time.Second,
		now:           time.Now,
		listeners:     make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	client.SetAuthenticator(m)
	return m
}

// Login exchanges credentials for a session. Prior state is untouched on
// failure.
func (m *Manager) Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error) {
	var tokens auth.TokenResponse
	if err := m.api.Post(ctx, "/api/auth/login", req, &tokens, api.WithoutAuthRetry()); err != nil {
		return nil, xerrors.Wrap(err, "login failed")
	}
	return m.install(tokens)
}

// Register creates an account and starts a session from the issued tokens.
func (m *Manager) Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error) {
	var tokens auth.TokenResponse
	if err := m.api.Post(ctx, "/api/auth/register", req, &tokens, api.WithoutAuthRetry()); err != nil {
		return nil, xerrors.Wrap(err, "registration failed")
	}
	return m.install(tokens)
}

// Refresh requests a new access token using the server-managed refresh cookie.
// On failure the session is cleared unconditionally.
func (m *Manager) Refresh(ctx context.Context) error {
	var tokens auth.TokenResponse
	if err := m.api.Post(ctx, "/api/auth/refresh", struct{}{}, &tokens, api.WithoutAuthRetry()); err != nil {
		m.log.Warn("session refresh failed, logging out", zap.Error(err))
		m.clear()
		return xerrors.Wrap(err, "refresh failed")
	}
	if _, err := m.install(tokens); err != nil {
		m.clear()
		return err
	}
	return nil
}

// Logout performs a best-effort server-side invalidation, then clears local
// state regardless of the call's outcome.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Post(ctx, "/api/auth/logout", struct{}{}, nil, api.WithoutAuthRetry()); err != nil {
		m.log.Warn("logout request failed", zap.Error(err))
	}
	m.clear()
}

// Token implements api.Authenticator.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.AccessToken
}

// Reauthenticate implements api.Authenticator: one refresh attempt, terminal
// on failure.
func (m *Manager) Reauthenticate(ctx context.Context) error {
	return m.Refresh(ctx)
}

// Current returns a snapshot of the active session, or nil.
func (m *Manager) Current() *auth.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return nil
	}
	snapshot := *m.sess
	return &snapshot
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess != nil
}

// OnChange registers a session listener and returns its unsubscribe func.
func (m *Manager) OnChange(fn Listener) func() {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		delete(m.listeners, id)
	}
}

// Start launches the proactive expiry check. Tokens past their embedded
// expiry are refreshed; everything else waits for the next tick.
func (m *Manager) Start() {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkExpiry(ctx)
			}
		}
	}()
}

// Close stops the expiry check; the session itself is left alone.
func (m *Manager) Close() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

func (m *Manager) checkExpiry(ctx context.Context) {
	sess := m.Current()
	if sess == nil || !sess.Expired(m.now()) {
		return
	}
	m.log.Info("access token expired, refreshing session")
	if err := m.Refresh(ctx); err != nil {
		m.log.Warn("proactive refresh failed", zap.Error(err))
	}
}

// install validates the issued token and replaces the current session.
func (m *Manager) install(tokens auth.TokenResponse) (*auth.Session, error) {
	claims, err := jwt.Decode(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidToken, err)
	}

	expiresAt := claims.ExpiresAt()
	if expiresAt.IsZero() && tokens.ExpiresIn > 0 {
		expiresAt = m.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}

	sess := &auth.Session{
		User: auth.User{
			ID:        tokens.UserID,
			Email:     tokens.Email,
			FirstName: tokens.FirstName,
			LastName:  tokens.LastName,
			Role:      tokens.Role,
		},
		AccessToken: tokens.AccessToken,
		FamilyID:    tokens.FamilyID,
		ExpiresAt:   expiresAt,
	}

	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()

	m.log.Info("session established",
		zap.String("user_id", sess.User.ID),
		zap.Time("expires_at", sess.ExpiresAt))

	m.notify()
	return m.Current(), nil
}

func (m *Manager) clear() {
	m.mu.Lock()
	cleared := m.sess != nil
	m.sess = nil
	m.mu.Unlock()

	if cleared {
		m.log.Info("session cleared")
	}
	m.notify()
}

func (m *Manager) notify() {
	snapshot := m.Current()

	m.listenerMu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
