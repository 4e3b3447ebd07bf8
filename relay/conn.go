package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 1 << 20
	sendQueueSize  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// conn wraps a websocket with a buffered outbound queue so broadcasts never
// block on a slow peer.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Enqueue queues a frame for delivery, dropping it when the queue is full or
// the session is tearing down. Dropped state frames are corrected by the next
// one; dropped events are accepted as best-effort. The send channel is never
// closed: a broadcast may still hold this session in its snapshot after
// teardown, and that late Enqueue must drop the frame, not panic.
func (c *conn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue onto the wire and keeps the peer alive
// with periodic pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump joins the room, feeds inbound frames to it, and tears the session
// down when the transport reports closure. A peer that stops answering pings
// trips the read deadline and is evicted the same way.
func (c *conn) readPump(room *Room, resumeToken string) {
	defer c.ws.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	id := room.Join(c, resumeToken)
	defer func() {
		room.Leave(id)
		c.close()
	}()

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		room.HandleMessage(id, payload)
	}
}
