package relay

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/icodeninjaX/officeparty/protocol"
)

// sender is the outbound half of one connected session. Enqueue must never
// block; it reports false when the frame was dropped.
type sender interface {
	Enqueue(frame []byte) bool
}

// RoomOptions controls whether discrete events echo back to their sender.
// The defaults match the observed behavior: shots go to peers only (the
// shooter already rendered its own projectile), hits go to everyone (hit
// visuals are idempotent, so the extra delivery is harmless).
type RoomOptions struct {
	EchoShots bool
	EchoHits  bool
}

// DefaultRoomOptions returns the observed echo behavior.
func DefaultRoomOptions() RoomOptions {
	return RoomOptions{EchoShots: false, EchoHits: true}
}

// Room is the authoritative broadcast point for one shared world instance.
// It owns the registry of connected players and the outbound side of every
// session; nothing else mutates either map.
type Room struct {
	Name string

	opts    RoomOptions
	log     *zap.SugaredLogger
	tokens  *TokenIssuer
	metrics *RoomMetrics

	// publish mirrors every broadcast frame to sibling relay instances.
	// Nil when the bridge is not configured.
	publish func(room string, frame []byte)

	mu       sync.Mutex
	players  map[string]*protocol.PlayerState
	sessions map[string]sender
}

// NewRoom creates an empty room. tokens may be nil, in which case no resume
// tokens are issued or honored.
func NewRoom(name string, opts RoomOptions, tokens *TokenIssuer, log *zap.SugaredLogger) *Room {
	return &Room{
		Name:     name,
		opts:     opts,
		log:      log,
		tokens:   tokens,
		metrics:  &RoomMetrics{},
		players:  make(map[string]*protocol.PlayerState),
		sessions: make(map[string]sender),
	}
}

// Metrics exposes the room's counters.
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Join registers a session, assigns it an identity, seeds it with the
// current registry, and announces it to everyone else. The identity from a
// valid resume token is honored when no live session holds it. Join cannot
// fail; it returns the assigned identity.
func (r *Room) Join(s sender, resumeToken string) string {
	resumed := ""
	if resumeToken != "" && r.tokens != nil {
		rid, err := r.tokens.Verify(resumeToken, r.Name)
		if err != nil {
			r.log.Debugw("resume token rejected", "room", r.Name, "err", err)
		} else {
			resumed = rid
		}
	}

	// The availability check and the registry insert share one lock
	// window; two simultaneous joins presenting the same token must not
	// both claim the identity.
	r.mu.Lock()
	id := ksuid.New().String()
	if resumed != "" {
		if _, taken := r.sessions[resumed]; !taken {
			id = resumed
		}
	}
	state := protocol.NewSpawnState(id, time.Now().UnixMilli())
	r.players[id] = &state
	r.sessions[id] = s
	others := make([]protocol.PlayerState, 0, len(r.players)-1)
	for pid, p := range r.players {
		if pid != id {
			others = append(others, *p)
		}
	}
	r.mu.Unlock()

	token := ""
	if r.tokens != nil {
		issued, err := r.tokens.Issue(id, r.Name)
		if err != nil {
			r.log.Warnw("issue resume token", "room", r.Name, "err", err)
		} else {
			token = issued
		}
	}

	s.Enqueue(protocol.EncodeInit(id, token, others))
	r.broadcast(protocol.EncodeJoined(state), id)

	r.log.Infow("player joined", "room", r.Name, "id", id, "players", r.PlayerCount())
	return id
}

// HandleMessage processes one raw frame from the session owning id.
// Malformed frames are counted, logged at debug, and dropped; the session
// stays connected.
func (r *Room) HandleMessage(id string, raw []byte) {
	r.metrics.IncMessage()

	msg, err := protocol.DecodeClientMessage(raw)
	if err != nil {
		r.metrics.IncMalformed()
		r.log.Debugw("dropping malformed frame", "room", r.Name, "id", id, "err", err)
		return
	}

	switch msg.Type {
	case protocol.KindState:
		state := *msg.State
		// Never trust a client-claimed identity.
		state.ID = id
		r.mu.Lock()
		if _, ok := r.players[id]; !ok {
			// Stale frame racing the session teardown; the player is
			// already gone.
			r.mu.Unlock()
			return
		}
		r.players[id] = &state
		r.mu.Unlock()
		r.broadcast(protocol.EncodeState(state), id)

	case protocol.KindShot:
		shot := *msg.Shot
		shot.ID = id
		exclude := id
		if r.opts.EchoShots {
			exclude = ""
		}
		r.broadcast(protocol.EncodeShot(shot), exclude)

	case protocol.KindHit:
		hit := *msg.Hit
		hit.AttackerID = id
		exclude := id
		if r.opts.EchoHits {
			exclude = ""
		}
		r.broadcast(protocol.EncodeHit(hit), exclude)
	}
}

// Leave removes the session and its registry entry and announces the
// departure to the remaining sessions.
func (r *Room) Leave(id string) {
	r.mu.Lock()
	_, ok := r.players[id]
	delete(r.players, id)
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.broadcast(protocol.EncodeLeft(id), id)
	r.log.Infow("player left", "room", r.Name, "id", id, "players", r.PlayerCount())
}

// PlayerCount returns current room occupancy.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Players returns a copy of the registry.
func (r *Room) Players() []protocol.PlayerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.PlayerState, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

// broadcast fans a frame out to every session except exclude (empty string
// excludes nobody). Fire and forget: a full queue drops the frame for that
// session only.
func (r *Room) broadcast(frame []byte, exclude string) {
	r.mu.Lock()
	targets := make([]sender, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id != exclude {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	for _, s := range targets {
		if !s.Enqueue(frame) {
			r.metrics.IncQueueDrop()
		}
	}
	r.metrics.IncBroadcast()

	if r.publish != nil {
		r.publish(r.Name, frame)
	}
}

// deliverLocal fans a frame from a sibling relay instance out to every local
// session. The registry is untouched; the owning instance remains the source
// of truth for the players it hosts.
func (r *Room) deliverLocal(frame []byte) {
	r.mu.Lock()
	targets := make([]sender, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		if !s.Enqueue(frame) {
			r.metrics.IncQueueDrop()
		}
	}
}
