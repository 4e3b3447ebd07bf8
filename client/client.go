// Package client is the multiplayer transport adapter: it keeps one
// websocket to the relay, pushes the local player's state at a fixed cadence,
// and turns inbound broadcasts into render-ready structures. Networking
// failures never escape this package; a client with no relay configured
// simply behaves as a solo session.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/icodeninjaX/officeparty/logging"
	"github.com/icodeninjaX/officeparty/protocol"
)

// DefaultSendInterval is the outbound state cadence: 20 Hz, independent of
// the render frame rate.
const DefaultSendInterval = 50 * time.Millisecond

// ConnState describes the adapter lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateReady means the relay has assigned an identity; state frames
	// flow only from here on.
	StateReady
)

// PeerListener receives membership changes synchronously from the inbound
// dispatch path, so consumers never need to poll the buffer's key set.
type PeerListener interface {
	PeerJoined(id string)
	PeerLeft(id string)
}

// LocalStateFunc supplies the live local player state each outbound tick.
// The movement system owns the values; ID and Timestamp are overwritten
// before sending.
type LocalStateFunc func() protocol.PlayerState

// Options configures a Client. An empty Host disables multiplayer entirely:
// Connect becomes a no-op and the session stays solo with no error surfaced.
type Options struct {
	Host         string // relay host:port; empty disables multiplayer
	Room         string // defaults to "office"
	Secure       bool   // use wss
	ResumeToken  string // identity resume token from a previous session
	LocalState   LocalStateFunc
	Listener     PeerListener // optional
	SendInterval time.Duration
	Log          *zap.SugaredLogger
}

// Client bridges local live state to the wire and wire broadcasts back into
// observable collections. All exported methods are safe for concurrent use.
type Client struct {
	opts   Options
	log    *zap.SugaredLogger
	buffer *RemoteBuffer
	shots  *shotList
	hits   *hitTracker

	mu          sync.RWMutex
	state       ConnState
	conn        *websocket.Conn
	id          string
	resumeToken string

	sendCh    chan []byte
	done      chan struct{}
	sendOnce  sync.Once
	closeOnce sync.Once

	shotSeq int64

	now func() time.Time
}

// New builds a Client. It does not touch the network; call Connect.
func New(opts Options) *Client {
	if opts.Room == "" {
		opts.Room = "office"
	}
	if opts.SendInterval <= 0 {
		opts.SendInterval = DefaultSendInterval
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return &Client{
		opts:        opts,
		log:         opts.Log,
		buffer:      NewRemoteBuffer(),
		shots:       &shotList{},
		hits:        newHitTracker(),
		state:       StateDisconnected,
		resumeToken: opts.ResumeToken,
		sendCh:      make(chan []byte, 16),
		done:        make(chan struct{}),
		shotSeq:     time.Now().UnixNano(),
		now:         time.Now,
	}
}

// Enabled reports whether a relay endpoint is configured.
func (c *Client) Enabled() bool {
	return c.opts.Host != ""
}

// Connect dials the relay and starts the send and receive loops. With no
// host configured it returns nil immediately and the client stays solo.
func (c *Client) Connect(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	// Close is terminal: the send ticker and write loop are gone for good,
	// so a dial from here would yield a client that can receive but never
	// send. A fresh Client (with the saved resume token) reconnects.
	select {
	case <-c.done:
		return fmt.Errorf("client: closed")
	default:
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("client: already connected")
	}
	c.state = StateConnecting
	resume := c.resumeToken
	c.mu.Unlock()

	scheme := "ws"
	if c.opts.Secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: c.opts.Host, Path: "/rooms/" + c.opts.Room + "/ws"}
	if resume != "" {
		u.RawQuery = url.Values{"resume": {resume}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("client: dial %s: %w", u.Host, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
	// One send ticker for the client's lifetime; it no-ops while the
	// connection is down, so reconnects do not stack tickers.
	c.sendOnce.Do(func() { go c.sendLoop() })

	c.log.Infow("connected to relay", "host", c.opts.Host, "room", c.opts.Room)
	return nil
}

// Close tears the connection down and clears all remote state. The client
// cannot be reused afterwards; Connect will refuse.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.buffer.Clear()
	c.shots.clear()
	c.hits.clear()
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connected reports whether the relay link is up.
func (c *Client) Connected() bool {
	return c.State() >= StateConnected
}

// ID returns the relay-assigned identity, empty until init arrives.
func (c *Client) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// ResumeToken returns the token to present on a future reconnect.
func (c *Client) ResumeToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resumeToken
}

// PlayerCount includes the local player, so a solo session reports 1.
func (c *Client) PlayerCount() int {
	return c.buffer.Len() + 1
}

// RemoteIDs returns the known remote identities in sorted order.
func (c *Client) RemoteIDs() []string {
	return c.buffer.IDs()
}

// Pose returns the interpolated render pose for a remote player.
func (c *Client) Pose(id string) (Pose, bool) {
	return c.buffer.Pose(id, c.now())
}

// RemoteShots returns the projectile visuals currently owned by the
// renderer.
func (c *Client) RemoteShots() []RemoteShot {
	return c.shots.snapshot()
}

// ReleaseShot discards a projectile visual once the renderer is done with
// it. Keyed by owner and shot id together, since shot ids are only unique
// per sender.
func (c *Client) ReleaseShot(playerID string, shotID int64) {
	c.shots.release(playerID, shotID)
}

// RecentlyHit reports whether id took a hit within the display window.
func (c *Client) RecentlyHit(id string) bool {
	return c.hits.recentlyHit(id, c.now())
}

// SendShot announces a locally fired projectile to peers. The local visual
// is spawned by the renderer independently; the two copies are never
// reconciled. Best effort: a no-op before the identity is assigned.
func (c *Client) SendShot(startPos, direction [3]float64) {
	c.mu.RLock()
	id := c.id
	ready := c.state == StateReady
	c.mu.RUnlock()
	if !ready {
		return
	}
	shot := protocol.ShotEvent{
		ID:        id,
		ShotID:    atomic.AddInt64(&c.shotSeq, 1),
		StartPos:  startPos,
		Direction: direction,
	}
	c.enqueue(protocol.EncodeShot(shot))
}

// SendHit claims a hit on targetID. Hit detection runs only on the attacking
// client, against the interpolated poses it rendered; receivers trust the
// claim.
func (c *Client) SendHit(targetID string) {
	c.mu.RLock()
	id := c.id
	ready := c.state == StateReady
	c.mu.RUnlock()
	if !ready {
		return
	}
	weapon := protocol.WeaponFists
	if c.opts.LocalState != nil {
		weapon = c.opts.LocalState().Weapon
	}
	hit := protocol.HitEvent{AttackerID: id, TargetID: targetID, Weapon: weapon}
	c.enqueue(protocol.EncodeHit(hit))
}

// enqueue hands a frame to the write loop without blocking; a full queue
// drops the frame, matching the send-or-drop wire semantics.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.sendCh <- frame:
	default:
	}
}

// sendLoop emits the local state every SendInterval. Ticks before the
// connection is ready are no-ops, not errors.
func (c *Client) sendLoop() {
	ticker := time.NewTicker(c.opts.SendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.RLock()
			id := c.id
			ready := c.state == StateReady
			c.mu.RUnlock()
			if !ready || c.opts.LocalState == nil {
				continue
			}
			state := c.opts.LocalState()
			state.ID = id
			state.Timestamp = c.now().UnixMilli()
			c.enqueue(protocol.EncodeState(state))
		case <-c.done:
			return
		}
	}
}

// writeLoop is the only goroutine writing to the websocket.
func (c *Client) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case frame := <-c.sendCh:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debugw("write failed", "err", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop decodes relay frames and dispatches them. A read error means the
// transport closed; the client degrades to solo rather than surfacing it.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.disconnected()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeServerMessage(payload)
		if err != nil {
			c.log.Debugw("dropping malformed frame", "err", err)
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage applies one relay frame to the local observable state.
func (c *Client) handleMessage(msg protocol.ServerMessage) {
	now := c.now()
	switch msg.Type {
	case protocol.KindInit:
		c.mu.Lock()
		c.id = msg.Init.ID
		if msg.Init.ResumeToken != "" {
			c.resumeToken = msg.Init.ResumeToken
		}
		if c.state == StateConnected {
			c.state = StateReady
		}
		c.mu.Unlock()
		// Peers already in the room announce through the same observer
		// path as later joins, so consumers never have to poll the
		// buffer's key set.
		for _, p := range msg.Init.Players {
			c.buffer.Seed(p, now)
			if c.opts.Listener != nil {
				c.opts.Listener.PeerJoined(p.ID)
			}
		}
		c.log.Infow("joined room", "id", msg.Init.ID, "peers", len(msg.Init.Players))

	case protocol.KindJoined:
		c.buffer.Seed(*msg.Joined, now)
		if c.opts.Listener != nil {
			c.opts.Listener.PeerJoined(msg.Joined.ID)
		}

	case protocol.KindState:
		if msg.State.ID == c.ID() {
			return
		}
		// An unknown identity means a joined was missed; the store seeds
		// it fresh instead of failing.
		if seeded := c.buffer.Store(*msg.State, now); seeded && c.opts.Listener != nil {
			c.opts.Listener.PeerJoined(msg.State.ID)
		}

	case protocol.KindLeft:
		c.buffer.Remove(msg.LeftID)
		if c.opts.Listener != nil {
			c.opts.Listener.PeerLeft(msg.LeftID)
		}

	case protocol.KindShot:
		// Own shots can echo back when the room is configured that way;
		// the local copy was already rendered.
		if msg.Shot.ID == c.ID() {
			return
		}
		c.shots.add(RemoteShot{
			PlayerID:  msg.Shot.ID,
			ShotID:    msg.Shot.ShotID,
			StartPos:  msg.Shot.StartPos,
			Direction: msg.Shot.Direction,
		})

	case protocol.KindHit:
		c.hits.mark(msg.Hit.TargetID, now)
	}
}

// disconnected moves the client back to solo after the transport closes.
func (c *Client) disconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()
	c.buffer.Clear()
	c.shots.clear()
	c.hits.clear()
	c.log.Infow("disconnected from relay", "room", c.opts.Room)
}
