package client

import (
	"math"
	"time"

	"github.com/icodeninjaX/officeparty/protocol"
)

// movementEpsilon is the horizontal displacement between two snapshots below
// which a player is rendered as idle. Walk state is inferred locally rather
// than sent over the wire.
const movementEpsilon = 0.01

// maxExtrapolation caps how far past the newest snapshot the pose may be
// projected when the network briefly stalls, in units of the last observed
// arrival interval. Past this the pose freezes rather than drifting.
const maxExtrapolation = 2.0

// Pose is the render-ready output for one remote player at one instant.
type Pose struct {
	X, Y, Z   float64
	Yaw       float64
	Name      string
	Weapon    protocol.Weapon
	Attacking bool
	Moving    bool
}

// Pose computes the interpolated pose for id at now. The interpolation
// window is paced by receipt times, not the sender's clock: delivery
// cadence, not emission cadence, decides how long a step should take.
func (b *RemoteBuffer) Pose(id string, now time.Time) (Pose, bool) {
	b.mu.RLock()
	entry, ok := b.entries[id]
	if !ok {
		b.mu.RUnlock()
		return Pose{}, false
	}
	cur := entry.current
	prev := entry.prev
	receivedAt := entry.receivedAt
	prevReceivedAt := entry.prevReceivedAt
	b.mu.RUnlock()

	pose := Pose{
		X:         cur.X,
		Y:         cur.Y,
		Z:         cur.Z,
		Yaw:       cur.Yaw,
		Name:      cur.Name,
		Weapon:    cur.Weapon,
		Attacking: cur.Attacking,
	}
	if prev == nil {
		return pose, true
	}

	interval := receivedAt.Sub(prevReceivedAt).Seconds()
	elapsed := now.Sub(receivedAt).Seconds()
	t := 0.0
	if interval > 0 {
		t = clamp(elapsed/interval, 0, maxExtrapolation)
	}

	pose.X = lerp(prev.X, cur.X, t)
	pose.Y = lerp(prev.Y, cur.Y, t)
	pose.Z = lerp(prev.Z, cur.Z, t)
	pose.Yaw = prev.Yaw + wrapAngle(cur.Yaw-prev.Yaw)*t
	pose.Moving = math.Abs(cur.X-prev.X) > movementEpsilon ||
		math.Abs(cur.Z-prev.Z) > movementEpsilon
	return pose, true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapAngle normalizes an angular delta into [-pi, pi] so interpolation
// crosses the wrap boundary the short way instead of spinning around.
func wrapAngle(delta float64) float64 {
	for delta > math.Pi {
		delta -= 2 * math.Pi
	}
	for delta < -math.Pi {
		delta += 2 * math.Pi
	}
	return delta
}
