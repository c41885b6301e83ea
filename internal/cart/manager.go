package cart

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/session-cart/internal/session"
)

// Manager hands out one Store per session. Stores are created on first use,
// loading whatever the session backend holds for that session; the backend's
// TTL bounds how long an idle session's state survives.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store

	sessions  session.Store
	base      string
	log       zerolog.Logger
	listeners []Listener
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Sessions        session.Store
	CheckoutBaseURL string
	Logger          zerolog.Logger
	// Listeners are subscribed to every store the manager creates.
	Listeners []Listener
}

// NewManager constructs a Manager.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		stores:    make(map[string]*Store),
		sessions:  opts.Sessions,
		base:      opts.CheckoutBaseURL,
		log:       opts.Logger,
		listeners: opts.Listeners,
	}
}

// ForSession returns the store for the given session, creating and loading it
// on first use.
func (m *Manager) ForSession(ctx context.Context, sessionID string) *Store {
	m.mu.Lock()
	if store, ok := m.stores[sessionID]; ok {
		m.mu.Unlock()
		return store
	}
	m.mu.Unlock()

	// Construct outside the lock; loading may hit the session backend.
	store := New(ctx, Options{
		Sessions:        m.sessions,
		Key:             sessionID,
		CheckoutBaseURL: m.base,
		Logger:          m.log.With().Str("session_id", sessionID).Logger(),
	})
	for _, l := range m.listeners {
		store.Subscribe(l)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.stores[sessionID]; ok {
		return existing
	}
	m.stores[sessionID] = store
	return store
}

// Evict drops the cached store for a session. The persisted state is left to
// the backend's TTL.
func (m *Manager) Evict(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sessionID)
}
