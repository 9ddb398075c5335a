package state

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/linzabot/core/logger"
	tghelpers "github.com/m3rciful/linzabot/core/telegram/helpers"
)

// State identifies a conversation step.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Session stores the conversation state and bot data for a user.
type Session[T any] struct {
	State     State
	Data      T
	UpdatedAt time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Manager holds sessions in memory and serializes work per user.
// It is safe for concurrent use.
type Manager[T any] struct {
	mu       sync.Mutex
	sessions map[int64]Session[T]
	locks    map[int64]*userLock
	handlers map[State]tele.HandlerFunc
	now      func() time.Time
}

// NewManager returns an empty in-memory manager.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{
		sessions: make(map[int64]Session[T]),
		locks:    make(map[int64]*userLock),
		handlers: make(map[State]tele.HandlerFunc),
		now:      time.Now,
	}
}

// Get returns the session of userID; a missing session is reported as idle.
func (m *Manager[T]) Get(userID int64) (Session[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session[T]{State: StateIdle}, false
	}
	return s, true
}

// Save stores s for userID. Saving an idle session removes it.
func (m *Manager[T]) Save(userID int64, s Session[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.State == StateIdle || s.State == "" {
		delete(m.sessions, userID)
		return
	}
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
}

// Clear removes the session of userID.
func (m *Manager[T]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether userID has a non-idle session.
func (m *Manager[T]) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return ok && s.State != StateIdle
}

// Len returns the number of stored sessions.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// WithLock runs fn while holding the lock of userID. Calls for the same user
// never overlap; other users are not blocked.
func (m *Manager[T]) WithLock(userID int64, fn func() error) error {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}()
	return fn()
}

// Sweep removes sessions idle for longer than maxIdle and returns how many were dropped.
// Sessions of users with work in flight are kept.
func (m *Manager[T]) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if _, busy := m.locks[id]; busy {
			continue
		}
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	left := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		logger.State.Info("sessions swept",
			slog.String("event", "state.sweep"),
			slog.Int("removed", removed),
			slog.Int("active", left),
			slog.Duration("max_idle", maxIdle),
		)
	}
	return removed
}

// RegisterHandler associates a state with the handler that processes text in it.
func (m *Manager[T]) RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// ManagerHandler executes the handler registered for the sender's current state, if any.
func (m *Manager[T]) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	s, _ := m.Get(userID)

	m.mu.Lock()
	handler, ok := m.handlers[s.State]
	m.mu.Unlock()

	ctx := tghelpers.BuildContext(c)
	logger.LogEvent(ctx, logger.State, slog.LevelDebug, "fsm.manager",
		slog.String("status", "ok"),
		slog.String("state", string(s.State)),
		slog.Bool("handled", ok),
	)
	if !ok {
		return nil
	}
	return handler(c)
}
