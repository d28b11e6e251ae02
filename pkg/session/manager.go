package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/pkg/domain"
)

// lockEntry holds the per-session mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager is the authoritative owner of session state. All reads and
// writes go through WithSession/WithExisting, which hold the per-session
// lock for the duration of the callback.
type Manager struct {
	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]*domain.Session

	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for internal events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates an empty session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*domain.Session),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must Lock entry.mu and call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithSession runs fn with the session locked, creating the session on
// first use. The *domain.Session must not be retained past fn.
func (m *Manager) WithSession(ctx context.Context, sessionID string, fn func(*domain.Session) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	s, exists := m.sessions[sessionID]
	if !exists {
		s = domain.NewSession(sessionID)
		m.sessions[sessionID] = s
		m.logger.Debug("session created", "session_id", sessionID)
	}
	m.mu.Unlock()

	return fn(s)
}

// WithExisting is WithSession without the create-on-miss: unknown sessions
// return domain.ErrSessionNotFound.
func (m *Manager) WithExisting(ctx context.Context, sessionID string, fn func(*domain.Session) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	s, exists := m.sessions[sessionID]
	m.mu.Unlock()
	if !exists {
		return domain.ErrSessionNotFound
	}

	return fn(s)
}

// Snapshot returns a deep copy of the session, safe to use without locks.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (domain.Session, error) {
	var copy domain.Session
	err := m.WithExisting(ctx, sessionID, func(s *domain.Session) error {
		copy = s.Clone()
		return nil
	})
	return copy, err
}

// Delete removes the session. Deleting an unknown session is a no-op.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle removes sessions whose last activity is older than idleFor and
// returns their ids, so the caller can release whatever it holds per session.
// Sessions currently locked by a turn are left alone; a turn in flight
// always refreshes LastActive before releasing the lock anyway.
func (m *Manager) EvictIdle(idleFor time.Duration) []string {
	cutoff := time.Now().Add(-idleFor)

	m.mu.Lock()
	stale := make([]string, 0)
	for id, s := range m.sessions {
		if _, busy := m.locks[id]; busy {
			continue
		}
		if s.LastActive.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if len(stale) > 0 {
		m.logger.Debug("idle sessions evicted", "count", len(stale))
	}
	return stale
}
