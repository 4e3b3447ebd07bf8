package relay

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Bridge mirrors room broadcasts across relay instances over Redis pub/sub,
// one channel per room. Frames published by this instance are tagged with
// its id and skipped on receipt, so local sessions only ever see a frame
// once. Registry state is never exchanged; each instance remains
// authoritative for the players connected to it.
type Bridge struct {
	rdb        *redis.Client
	instanceID string
	log        *zap.SugaredLogger
	ctx        context.Context
	cancel     context.CancelFunc
}

type bridgeFrame struct {
	Instance string          `json:"instance"`
	Frame    json.RawMessage `json:"frame"`
}

func NewBridge(rdb *redis.Client, log *zap.SugaredLogger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		rdb:        rdb,
		instanceID: ksuid.New().String(),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func channelFor(room string) string {
	return "officeparty:" + room
}

// Publish mirrors one broadcast frame to sibling instances. Best effort; a
// publish failure loses the frame for remote viewers only.
func (b *Bridge) Publish(room string, frame []byte) {
	payload, err := json.Marshal(bridgeFrame{Instance: b.instanceID, Frame: frame})
	if err != nil {
		b.log.Warnw("bridge marshal", "room", room, "err", err)
		return
	}
	if err := b.rdb.Publish(b.ctx, channelFor(room), payload).Err(); err != nil {
		b.log.Warnw("bridge publish", "room", room, "err", err)
	}
}

// Attach subscribes the room to its channel and starts relaying frames from
// other instances to local sessions. Also hooks the room's broadcast path so
// its own frames get published.
func (b *Bridge) Attach(room *Room) {
	room.publish = b.Publish
	sub := b.rdb.Subscribe(b.ctx, channelFor(room.Name))

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.handleFrame(room, []byte(msg.Payload))
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

// handleFrame unwraps one pub/sub payload and fans it out to local sessions.
// Frames this instance published itself are skipped, so local sessions see
// each broadcast exactly once.
func (b *Bridge) handleFrame(room *Room, payload []byte) {
	var f bridgeFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		b.log.Debugw("bridge frame dropped", "room", room.Name, "err", err)
		return
	}
	if f.Instance == b.instanceID {
		return
	}
	room.deliverLocal(f.Frame)
}

// Close stops all subscriber goroutines.
func (b *Bridge) Close() {
	b.cancel()
}
