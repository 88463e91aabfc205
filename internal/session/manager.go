package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/coldcall/internal/game"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrCallInProgress = errors.New("a call is already in progress for this session")
)

// Session holds one user's game. Values handed out by the Manager are copies.
type Session struct {
	ID             string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	Status         Status     `json:"status"`
	Game           game.State `json:"game"`
	CallActive     bool       `json:"call_active"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration {
	return m.inactivityTimeout
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create starts a fresh game. A user holds at most one session; creating a
// second one ends the first.
func (m *Manager) Create(userID string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusActive,
		Game:           game.Initial(),
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if userID != "" {
		if prev, ok := m.sessions[m.sessionByUser[userID]]; ok {
			prev.Status = StatusEnded
			delete(m.sessions, prev.ID)
		}
		m.sessionByUser[userID] = s.ID
	}
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Update applies fn to the session's game under the lock. The game is left
// unchanged when fn fails.
func (m *Manager) Update(sessionID string, fn func(game.State) (game.State, error)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := fn(s.Game.Clone())
	if err != nil {
		return nil, err
	}
	s.Game = next
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

// UpdateIdle is Update for callers outside the call: it refuses with
// ErrCallInProgress while the call websocket owns the game.
func (m *Manager) UpdateIdle(sessionID string, fn func(game.State) (game.State, error)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.CallActive {
		return nil, ErrCallInProgress
	}
	next, err := fn(s.Game.Clone())
	if err != nil {
		return nil, err
	}
	s.Game = next
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

// AcquireCall marks the session as having a live call. Only one call may run
// per session.
func (m *Manager) AcquireCall(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.CallActive {
		return nil, ErrCallInProgress
	}
	s.CallActive = true
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

func (m *Manager) ReleaseCall(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.CallActive = false
		s.LastActivityAt = time.Now().UTC()
	}
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	m.remove(s)
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) View(s *Session) View {
	return View{
		SessionID:       s.ID,
		UserID:          s.UserID,
		Status:          s.Status,
		Screen:          s.Game.Screen(),
		BackDisabled:    s.Game.BackDisabled(),
		CallActive:      s.CallActive,
		Game:            s.Game,
		StartedAt:       s.StartedAt,
		LastActivityAt:  s.LastActivityAt,
		InactivityTTLMS: m.inactivityTimeout.Milliseconds(),
	}
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		// A call in progress keeps its game alive.
		if s.CallActive || now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
		m.remove(s)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

// remove must be called with mu held.
func (m *Manager) remove(s *Session) {
	delete(m.sessions, s.ID)
	if s.UserID != "" && m.sessionByUser[s.UserID] == s.ID {
		delete(m.sessionByUser, s.UserID)
	}
}

func clone(s *Session) *Session {
	c := *s
	c.Game = s.Game.Clone()
	return &c
}
