package relay

import "sync/atomic"

// RoomMetrics tracks per-room counters for the /metrics endpoint.
type RoomMetrics struct {
	MessagesIn       int64
	Broadcasts       int64
	MalformedDropped int64
	QueueFullDropped int64
}

func (m *RoomMetrics) IncMessage()   { atomic.AddInt64(&m.MessagesIn, 1) }
func (m *RoomMetrics) IncBroadcast() { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) IncMalformed() { atomic.AddInt64(&m.MalformedDropped, 1) }
func (m *RoomMetrics) IncQueueDrop() { atomic.AddInt64(&m.QueueFullDropped, 1) }

// Snapshot returns a read-only copy suitable for JSON output.
func (m *RoomMetrics) Snapshot() map[string]any {
	return map[string]any{
		"messages_in":        atomic.LoadInt64(&m.MessagesIn),
		"broadcasts":         atomic.LoadInt64(&m.Broadcasts),
		"malformed_dropped":  atomic.LoadInt64(&m.MalformedDropped),
		"queue_full_dropped": atomic.LoadInt64(&m.QueueFullDropped),
	}
}
