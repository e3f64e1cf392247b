package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Constants for session lifecycle management
const (
	// DefaultSessionTTL is how long an idle session survives before the
	// janitor evicts it.
	DefaultSessionTTL = 10 * time.Minute
	// DefaultJanitorInterval is how often expired sessions are swept.
	DefaultJanitorInterval = time.Minute
)

// session holds one user's transient flow state. Sessions live only in
// process memory; they do not survive a restart and are not shared across
// instances.
type session struct {
	state     StateType
	data      map[DataKey]string
	updatedAt time.Time
}

type sessionKey struct {
	userID   string
	flowType FlowType
}

// Opts holds configuration options for the state manager.
type Opts struct {
	TTL             time.Duration
	JanitorInterval time.Duration
	Clock           func() time.Time
}

// Option defines a configuration option for the state manager.
type Option func(*Opts)

// WithTTL overrides the idle-session eviction deadline.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.TTL = ttl
	}
}

// WithJanitorInterval overrides how often the eviction sweep runs.
func WithJanitorInterval(d time.Duration) Option {
	return func(o *Opts) {
		o.JanitorInterval = d
	}
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = now
	}
}

// InMemoryStateManager implements StateManager with a mutex-guarded map
// and TTL-based eviction, so an interrupted flow cannot leave an orphaned
// session behind forever.
type InMemoryStateManager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*session
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewInMemoryStateManager creates a state manager and starts its eviction
// janitor. Call Stop to shut the janitor down.
func NewInMemoryStateManager(opts ...Option) *InMemoryStateManager {
	cfg := Opts{
		TTL:             DefaultSessionTTL,
		JanitorInterval: DefaultJanitorInterval,
		Clock:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sm := &InMemoryStateManager{
		sessions: make(map[sessionKey]*session),
		ttl:      cfg.TTL,
		interval: cfg.JanitorInterval,
		now:      cfg.Clock,
		done:     make(chan struct{}),
	}
	go sm.janitor()
	slog.Debug("InMemoryStateManager created", "ttl", sm.ttl, "janitor_interval", sm.interval)
	return sm
}

// Stop terminates the eviction janitor. Safe to call multiple times.
func (sm *InMemoryStateManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.done)
	})
}

func (sm *InMemoryStateManager) janitor() {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sm.EvictExpired()
		case <-sm.done:
			return
		}
	}
}

// EvictExpired removes sessions idle for longer than the TTL and returns
// how many were removed.
func (sm *InMemoryStateManager) EvictExpired() int {
	cutoff := sm.now().Add(-sm.ttl)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	evicted := 0
	for key, sess := range sm.sessions {
		if sess.updatedAt.Before(cutoff) {
			delete(sm.sessions, key)
			evicted++
			slog.Debug("StateManager evicted expired session", "userID", key.userID, "flowType", key.flowType, "state", sess.state)
		}
	}
	return evicted
}

// GetCurrentState retrieves the current state for a user in a flow.
// Returns "" when the user has no live session.
func (sm *InMemoryStateManager) GetCurrentState(ctx context.Context, userID string, flowType FlowType) (StateType, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sess, ok := sm.sessions[sessionKey{userID, flowType}]
	if !ok {
		return "", nil
	}
	return sess.state, nil
}

// SetCurrentState updates the current state for a user in a flow,
// creating the session if none exists.
func (sm *InMemoryStateManager) SetCurrentState(ctx context.Context, userID string, flowType FlowType, state StateType) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	key := sessionKey{userID, flowType}
	sess, ok := sm.sessions[key]
	if !ok {
		sess = &session{data: make(map[DataKey]string)}
		sm.sessions[key] = sess
	}
	sess.state = state
	sess.updatedAt = sm.now()
	slog.Debug("StateManager SetCurrentState", "userID", userID, "flowType", flowType, "state", state)
	return nil
}

// GetStateData retrieves additional data associated with the session.
// Returns "" when the session or key is absent.
func (sm *InMemoryStateManager) GetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sess, ok := sm.sessions[sessionKey{userID, flowType}]
	if !ok {
		return "", nil
	}
	return sess.data[key], nil
}

// SetStateData stores additional data associated with the session,
// creating the session (with an empty state) if none exists.
func (sm *InMemoryStateManager) SetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey, value string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	k := sessionKey{userID, flowType}
	sess, ok := sm.sessions[k]
	if !ok {
		sess = &session{data: make(map[DataKey]string)}
		sm.sessions[k] = sess
	}
	sess.data[key] = value
	sess.updatedAt = sm.now()
	slog.Debug("StateManager SetStateData", "userID", userID, "flowType", flowType, "key", key)
	return nil
}

// TransitionState transitions from one state to another, verifying the
// current state first.
func (sm *InMemoryStateManager) TransitionState(ctx context.Context, userID string, flowType FlowType, fromState, toState StateType) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	key := sessionKey{userID, flowType}
	sess, ok := sm.sessions[key]
	current := StateType("")
	if ok {
		current = sess.state
	}
	if current != fromState {
		err := fmt.Errorf("invalid state transition: expected %s, current is %s", fromState, current)
		slog.Error("StateManager TransitionState invalid transition", "error", err, "userID", userID, "flowType", flowType)
		return err
	}
	if !ok {
		sess = &session{data: make(map[DataKey]string)}
		sm.sessions[key] = sess
	}
	sess.state = toState
	sess.updatedAt = sm.now()
	slog.Info("StateManager TransitionState succeeded", "userID", userID, "flowType", flowType, "from", fromState, "to", toState)
	return nil
}

// ResetState discards the session and all its data. Resetting a missing
// session is a no-op.
func (sm *InMemoryStateManager) ResetState(ctx context.Context, userID string, flowType FlowType) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionKey{userID, flowType})
	slog.Debug("StateManager ResetState", "userID", userID, "flowType", flowType)
	return nil
}
