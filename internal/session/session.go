// Package session tracks the authenticated user and the online/offline
// state, and fans both kinds of transition out to listeners. The sync
// coordinator is the main consumer.
package session

import (
	"sync"

	"github.com/rs/zerolog"
)

type Identity struct {
	UserID string `json:"userId"`
}

type EventKind int

const (
	EventSignIn EventKind = iota
	EventSignOut
	EventSessionRestore
	EventOnline
	EventOffline
)

func (k EventKind) String() string {
	switch k {
	case EventSignIn:
		return "sign-in"
	case EventSignOut:
		return "sign-out"
	case EventSessionRestore:
		return "session-restore"
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Event carries a nullable identity: sign-out events have a nil User.
type Event struct {
	Kind EventKind
	User *Identity
}

type Listener func(Event)

type Manager struct {
	mu        sync.RWMutex
	user      *Identity
	online    bool
	listeners []Listener
	logger    zerolog.Logger
}

func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{online: true, logger: logger}
}

// OnEvent registers a listener. Listeners run synchronously on the
// goroutine that fired the transition; register before events start.
func (m *Manager) OnEvent(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *Manager) emit(ev Event) {
	m.mu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	m.logger.Debug().Str("event", ev.Kind.String()).Msg("session event")
	for _, l := range listeners {
		l(ev)
	}
}

func (m *Manager) SignIn(userID string) {
	user := &Identity{UserID: userID}
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	m.emit(Event{Kind: EventSignIn, User: user})
}

// RestoreSession replays a previously established identity, such as one
// recovered from a stored token on startup.
func (m *Manager) RestoreSession(userID string) {
	user := &Identity{UserID: userID}
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	m.emit(Event{Kind: EventSessionRestore, User: user})
}

func (m *Manager) SignOut() {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
	m.emit(Event{Kind: EventSignOut, User: nil})
}

// SetOnline records connectivity; the event fires only on an actual
// transition.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	user := m.user
	m.mu.Unlock()

	if !changed {
		return
	}
	kind := EventOffline
	if online {
		kind = EventOnline
	}
	m.emit(Event{Kind: kind, User: user})
}

func (m *Manager) User() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) Authenticated() bool {
	return m.User() != nil
}

func (m *Manager) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}
