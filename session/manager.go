package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/networkteam/rocketworld/capture"
)

// Manager keeps the sessions of all scenarios currently running in a process.
// Concurrent scenarios get independent sessions; nothing is shared between them.
type Manager struct {
	opts        Options
	transitions *capture.Notifier[Transition]

	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	cleanupCtx       context.Context
	cleanupCtxCancel context.CancelFunc
	cleanupDone      chan struct{}
}

// NewManager creates a Manager. If opts.ReapAfter is set, a cleanup goroutine releases
// sessions that are held longer than that.
func NewManager(opts Options) *Manager {
	transitions := capture.NewNotifier[Transition]()
	opts = opts.withDefaults()
	opts.transitions = transitions

	cleanupCtx, cleanupCtxCancel := context.WithCancel(context.Background())

	m := &Manager{
		opts:             opts,
		transitions:      transitions,
		sessions:         make(map[string]*Session),
		cleanupCtx:       cleanupCtx,
		cleanupCtxCancel: cleanupCtxCancel,
		cleanupDone:      make(chan struct{}),
	}

	if opts.ReapAfter > 0 {
		go m.cleanupLoop()
	} else {
		close(m.cleanupDone)
	}

	return m
}

// Options returns the options sessions are created with.
func (m *Manager) Options() Options {
	return m.opts
}

// Get returns the session of a scenario, or nil if not found.
func (m *Manager) Get(scenarioID string) *Session {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	return m.sessions[scenarioID]
}

// GetOrCreate returns the session of a scenario, creating it if it doesn't exist.
// Returns the session and whether it was newly created.
func (m *Manager) GetOrCreate(scenarioID, name string) (*Session, bool) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()

	if s, exists := m.sessions[scenarioID]; exists {
		if s.State() != StateClosed {
			return s, false
		}
		// Released by the reaper, start over
		delete(m.sessions, scenarioID)
	}

	s := New(name, m.opts)
	m.sessions[scenarioID] = s

	return s, true
}

// Delete releases the session of a scenario and forgets it.
func (m *Manager) Delete(ctx context.Context, scenarioID string) ArtifactSet {
	m.sessionsMu.Lock()
	s, exists := m.sessions[scenarioID]
	delete(m.sessions, scenarioID)
	m.sessionsMu.Unlock()

	if !exists {
		return ArtifactSet{}
	}
	return s.Release(ctx)
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	return len(m.sessions)
}

// Active returns the number of sessions in the ready state.
func (m *Manager) Active() int {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()

	active := 0
	for _, s := range m.sessions {
		if s.State() == StateReady {
			active++
		}
	}
	return active
}

// Subscribe returns a channel receiving state transitions of all sessions.
func (m *Manager) Subscribe(ctx context.Context) <-chan Transition {
	return m.transitions.Subscribe(ctx)
}

// Close releases every session still held and stops the manager.
func (m *Manager) Close(ctx context.Context) {
	m.cleanupCtxCancel()
	<-m.cleanupDone

	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.sessionsMu.Unlock()

	for scenarioID, s := range sessions {
		if s.State() == StateReady {
			m.opts.Logger.Warn("Releasing session left open at shutdown",
				slog.String("scenario", s.Name()),
				slog.String("scenarioID", scenarioID),
			)
		}
		s.Release(ctx)
	}

	m.transitions.Close()
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(max(m.opts.ReapAfter/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-m.cleanupCtx.Done():
			return
		case <-ticker.C:
			m.releaseExpired()
		}
	}
}

func (m *Manager) releaseExpired() {
	now := time.Now()

	var expired []*Session
	m.sessionsMu.RLock()
	for _, s := range m.sessions {
		if now.Sub(s.created) > m.opts.ReapAfter && s.State() == StateReady {
			expired = append(expired, s)
		}
	}
	m.sessionsMu.RUnlock()

	for _, s := range expired {
		m.opts.Logger.Warn("Releasing expired session",
			slog.String("scenario", s.Name()),
			slog.String("session", s.ID().String()),
			slog.Duration("age", now.Sub(s.created)),
		)
		s.Release(m.cleanupCtx)
	}
}
