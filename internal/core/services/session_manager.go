package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	defaultRoleCacheTTL    = 5 * time.Minute
	defaultRestoreInterval = 30 * time.Second
)

// SessionManager is the process-wide session adapter. It is created once in main, started before the
// server accepts traffic and stopped on shutdown.
type SessionManager struct {
	tokens   *TokenIssuer
	store    ports.SessionStore
	profiles ports.ProfileRepository
	log      *zap.SugaredLogger

	roleTTL         time.Duration
	restoreInterval time.Duration

	loading atomic.Bool
	healthy atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ ports.SessionResolver = (*SessionManager)(nil)

func NewSessionManager(
	tokens *TokenIssuer,
	store ports.SessionStore,
	profiles ports.ProfileRepository,
	log *zap.SugaredLogger,
) *SessionManager {
	m := &SessionManager{
		tokens:          tokens,
		store:           store,
		profiles:        profiles,
		log:             log,
		roleTTL:         defaultRoleCacheTTL,
		restoreInterval: defaultRestoreInterval,
	}
	m.loading.Store(true)
	return m
}

// WithRestoreInterval changes how often the session store is re-checked after startup.
func (m *SessionManager) WithRestoreInterval(d time.Duration) *SessionManager {
	m.restoreInterval = d
	return m
}

// Start performs the first session restoration and keeps watching the session store until ctx
// is done or Stop is called. Loading flips to false after the first attempt, whatever its outcome.
func (m *SessionManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.watch(ctx)
}

func (m *SessionManager) watch(ctx context.Context) {
	defer close(m.done)

	m.restore(ctx)
	m.loading.Store(false)

	ticker := time.NewTicker(m.restoreInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.restore(ctx)
		}
	}
}

func (m *SessionManager) restore(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := m.store.Ping(pingCtx)
	was := m.healthy.Swap(err == nil)
	switch {
	case err != nil && (was || m.loading.Load()):
		m.log.Warnw("session store unreachable", "error", err)
	case err == nil && !was:
		m.log.Infow("session store restored")
	}
}

// Stop unsubscribes from the session store and waits for the watcher to exit.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *SessionManager) Loading() bool {
	return m.loading.Load()
}

// Resolve validates token, rejects revoked sessions and attaches the caller's role. The role is left
// empty when it cannot be looked up; the access gate treats that as unauthenticated.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.NewAuthError("missing session", domain.ErrUnauthenticated)
	}

	session, err := m.tokens.Verify(token)
	if err != nil {
		return nil, domain.NewAuthError("invalid session", errors.Join(domain.ErrUnauthenticated, err))
	}

	revoked, err := m.store.IsRevoked(ctx, session.TokenID)
	if err != nil {
		m.log.Errorw("revocation check failed", "subject", session.Identity.ID, "error", err)
		return nil, domain.NewAuthError("session check unavailable", err)
	}
	if revoked {
		return nil, domain.NewAuthError("session revoked", domain.ErrUnauthenticated)
	}

	session.Role = m.resolveRole(ctx, session.Identity.ID)
	return session, nil
}

// resolveRole looks at the role cache, then the profile record. A subject with no profile is a citizen.
func (m *SessionManager) resolveRole(ctx context.Context, subjectID string) domain.Role {
	if role, ok, err := m.store.CachedRole(ctx, subjectID); err != nil {
		m.log.Debugw("role cache read failed", "subject", subjectID, "error", err)
	} else if ok && role.Valid() {
		return role
	}

	role := domain.RoleCitizen
	profile, err := m.profiles.FindByID(ctx, subjectID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		m.log.Warnw("role lookup failed", "subject", subjectID, "error", err)
		return ""
	default:
		role = profile.Role
	}

	if err := m.store.CacheRole(ctx, subjectID, role, m.roleTTL); err != nil {
		m.log.Debugw("role cache write failed", "subject", subjectID, "error", err)
	}
	return role
}

// forgetRole drops the cached role so the next Resolve re-reads the profile.
func (m *SessionManager) forgetRole(ctx context.Context, subjectID string) error {
	return m.store.ClearRole(ctx, subjectID)
}

// revoke blacklists the session token for the rest of its lifetime.
func (m *SessionManager) revoke(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.store.Revoke(ctx, session.TokenID, ttl)
}
