package dialog

import (
	"context"
	"sync"
	"time"

	"github.com/roomli/publishd/internal/log"
	"github.com/roomli/publishd/internal/metrics"
)

const (
	// SessionInactivityTimeout is how long a session can be inactive
	// before cleanup.
	SessionInactivityTimeout = 24 * time.Hour

	// SessionCleanupInterval is how often to run cleanup.
	SessionCleanupInterval = 1 * time.Hour

	// MaxSessions is the maximum number of sessions before LRU eviction.
	MaxSessions = 1000
)

// Session bundles one publish dialog's controller with its navigator.
type Session struct {
	ID         string
	Controller *Controller
	Nav        *RouteNavigator
}

// sessionInfo tracks a session and its last activity time.
type sessionInfo struct {
	session      *Session
	lastActivity time.Time
}

// SessionFactory creates the Session for a new session id.
type SessionFactory func(sessionID string) *Session

// SessionManager provides thread-safe management of publish dialog
// sessions. Each session is identified by a unique session ID and holds its
// own dialog state.
//
// SessionManager is safe for concurrent access. It uses a read-write mutex
// with double-check locking so concurrent requests for an existing session
// take the read path.
//
// Sessions are cleaned up after SessionInactivityTimeout of inactivity by a
// background goroutine; if the session count exceeds the manager's limit,
// the least recently used session is evicted.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionInfo
	factory  SessionFactory

	maxSessions       int
	inactivityTimeout time.Duration

	cancelCleanup context.CancelFunc
	cleanupDone   chan struct{}
}

// NewSessionManager creates a session manager that builds sessions with the
// given factory and starts the background cleanup goroutine.
func NewSessionManager(factory SessionFactory) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	sm := &SessionManager{
		sessions:          make(map[string]*sessionInfo),
		factory:           factory,
		maxSessions:       MaxSessions,
		inactivityTimeout: SessionInactivityTimeout,
		cancelCleanup:     cancel,
		cleanupDone:       make(chan struct{}),
	}

	go sm.cleanupLoop(ctx)

	return sm
}

// GetOrCreate returns the Session for the given session ID, creating it via
// the factory if absent, and updates the session's last activity time.
func (sm *SessionManager) GetOrCreate(sessionID string) *Session {
	now := time.Now()

	// Fast path for existing sessions
	sm.mu.RLock()
	if info, ok := sm.sessions[sessionID]; ok {
		sm.mu.RUnlock()
		sm.mu.Lock()
		info.lastActivity = now
		sm.mu.Unlock()
		return info.session
	}
	sm.mu.RUnlock()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Double-check after acquiring the write lock; another goroutine may
	// have created the session while we waited.
	if info, ok := sm.sessions[sessionID]; ok {
		info.lastActivity = now
		return info.session
	}

	if len(sm.sessions) >= sm.maxSessions {
		sm.evictLRU()
	}

	session := sm.factory(sessionID)
	sm.sessions[sessionID] = &sessionInfo{
		session:      session,
		lastActivity: now,
	}
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	return session
}

// Get returns the Session for the given ID, or nil if it doesn't exist.
// It does not create a new session or refresh activity.
func (sm *SessionManager) Get(sessionID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if info, ok := sm.sessions[sessionID]; ok {
		return info.session
	}
	return nil
}

// Delete removes the session with the given ID. No-op if absent.
func (sm *SessionManager) Delete(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Close stops the background cleanup goroutine and waits for it to exit.
func (sm *SessionManager) Close() {
	sm.cancelCleanup()
	<-sm.cleanupDone
}

// evictLRU removes the least recently used session.
// Caller must hold the write lock.
func (sm *SessionManager) evictLRU() {
	var oldestID string
	var oldest time.Time
	for id, info := range sm.sessions {
		if oldestID == "" || info.lastActivity.Before(oldest) {
			oldestID = id
			oldest = info.lastActivity
		}
	}
	if oldestID != "" {
		delete(sm.sessions, oldestID)
		logger := log.WithComponent("dialog")
		logger.Debug().Str("session_id", oldestID).Msg("evicted LRU session")
	}
}

// cleanupLoop periodically removes sessions inactive past the timeout.
func (sm *SessionManager) cleanupLoop(ctx context.Context) {
	defer close(sm.cleanupDone)

	ticker := time.NewTicker(SessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.cleanupStale()
		}
	}
}

// cleanupStale removes all sessions whose last activity is older than the
// inactivity timeout.
func (sm *SessionManager) cleanupStale() {
	cutoff := time.Now().Add(-sm.inactivityTimeout)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, info := range sm.sessions {
		if info.lastActivity.Before(cutoff) {
			delete(sm.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
}

// RouteNavigator is a Navigator that records the most recent navigation
// request so an HTTP client can poll for it. Safe for concurrent use.
type RouteNavigator struct {
	mu    sync.Mutex
	route string
}

// NavigateToRoom records a route to the created room's detail view.
func (n *RouteNavigator) NavigateToRoom(roomID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = "/rooms/" + roomID
}

// NavigateBack records a route back to the previous view.
func (n *RouteNavigator) NavigateBack() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = ".."
}

// Route returns the most recently recorded route, or "" if none.
func (n *RouteNavigator) Route() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}
