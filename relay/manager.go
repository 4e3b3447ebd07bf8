package relay

import (
	"sync"

	"go.uber.org/zap"
)

// Manager creates rooms lazily and hands out the same instance for every
// connection sharing a room name.
type Manager struct {
	log    *zap.SugaredLogger
	tokens *TokenIssuer
	opts   RoomOptions
	bridge *Bridge

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewManager wires the shared collaborators into every room it creates.
// tokens and bridge may be nil to disable resume tokens and cross-instance
// fanout respectively.
func NewManager(opts RoomOptions, tokens *TokenIssuer, bridge *Bridge, log *zap.SugaredLogger) *Manager {
	return &Manager{
		log:    log,
		tokens: tokens,
		opts:   opts,
		bridge: bridge,
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreateRoom returns the room for name, creating and bridging it on
// first use.
func (m *Manager) GetOrCreateRoom(name string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[name]
	if !ok {
		m.log.Infow("creating room", "room", name)
		room = NewRoom(name, m.opts, m.tokens, m.log)
		if m.bridge != nil {
			m.bridge.Attach(room)
		}
		m.rooms[name] = room
	}
	return room
}

// Room returns an existing room without creating one.
func (m *Manager) Room(name string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[name]
	return room, ok
}
