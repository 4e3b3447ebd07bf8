package client

import (
	"math"
	"testing"
	"time"

	"github.com/icodeninjaX/officeparty/protocol"
)

func poseAt(t *testing.T, prev, cur protocol.PlayerState, interval, elapsed time.Duration) Pose {
	t.Helper()
	buf := NewRemoteBuffer()
	t0 := time.Now()
	prev.ID = "p"
	cur.ID = "p"
	buf.Seed(prev, t0)
	buf.Store(cur, t0.Add(interval))
	pose, ok := buf.Pose("p", t0.Add(interval+elapsed))
	if !ok {
		t.Fatal("player not found")
	}
	return pose
}

func TestYawInterpolationCrossesWrapBoundary(t *testing.T) {
	// 3.0 rad to -3.0 rad is a short step across the wrap boundary, not a
	// 6 rad spin through zero.
	pose := poseAt(t,
		protocol.PlayerState{Yaw: 3.0},
		protocol.PlayerState{Yaw: -3.0},
		100*time.Millisecond,
		50*time.Millisecond,
	)

	dist := math.Abs(math.Abs(pose.Yaw) - math.Pi)
	if dist > 0.2 {
		t.Fatalf("midpoint yaw = %v, want near ±π", pose.Yaw)
	}
	if math.Abs(pose.Yaw) < 3.0 {
		t.Fatalf("midpoint yaw = %v took the long way around", pose.Yaw)
	}
}

func TestYawInterpolationWithoutWrap(t *testing.T) {
	pose := poseAt(t,
		protocol.PlayerState{Yaw: 0.5},
		protocol.PlayerState{Yaw: 1.5},
		100*time.Millisecond,
		50*time.Millisecond,
	)
	if math.Abs(pose.Yaw-1.0) > 1e-9 {
		t.Fatalf("midpoint yaw = %v, want 1.0", pose.Yaw)
	}
}

func TestPositionLerp(t *testing.T) {
	pose := poseAt(t,
		protocol.PlayerState{X: 0, Y: 0, Z: 10},
		protocol.PlayerState{X: 4, Y: 2, Z: 6},
		100*time.Millisecond,
		25*time.Millisecond,
	)
	if math.Abs(pose.X-1) > 1e-9 || math.Abs(pose.Y-0.5) > 1e-9 || math.Abs(pose.Z-9) > 1e-9 {
		t.Fatalf("quarter-way pose = (%v, %v, %v), want (1, 0.5, 9)", pose.X, pose.Y, pose.Z)
	}
}

func TestExtrapolationIsCapped(t *testing.T) {
	// After a long stall the pose projects at most one extra interval past
	// the newest snapshot, then freezes.
	pose := poseAt(t,
		protocol.PlayerState{X: 0},
		protocol.PlayerState{X: 1},
		100*time.Millisecond,
		5*time.Second,
	)
	if math.Abs(pose.X-2) > 1e-9 {
		t.Fatalf("stalled pose x = %v, want capped at 2", pose.X)
	}
}

func TestNegativeElapsedClampsToPrev(t *testing.T) {
	// A render tick that fires before the newest snapshot's receipt time
	// (clock skew between goroutines) clamps to the window start.
	pose := poseAt(t,
		protocol.PlayerState{X: 5},
		protocol.PlayerState{X: 9},
		100*time.Millisecond,
		-30*time.Millisecond,
	)
	if math.Abs(pose.X-5) > 1e-9 {
		t.Fatalf("pre-window pose x = %v, want 5", pose.X)
	}
}

func TestMovementInference(t *testing.T) {
	cases := []struct {
		name string
		prev protocol.PlayerState
		cur  protocol.PlayerState
		want bool
	}{
		{"still", protocol.PlayerState{X: 1, Z: 1}, protocol.PlayerState{X: 1, Z: 1}, false},
		{"sub-threshold jitter", protocol.PlayerState{X: 1, Z: 1}, protocol.PlayerState{X: 1.005, Z: 1.005}, false},
		{"walking x", protocol.PlayerState{X: 1}, protocol.PlayerState{X: 1.5}, true},
		{"walking z", protocol.PlayerState{Z: 1}, protocol.PlayerState{Z: 0.5}, true},
		{"vertical only", protocol.PlayerState{Y: 0.3}, protocol.PlayerState{Y: 1.3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pose := poseAt(t, tc.prev, tc.cur, 50*time.Millisecond, 10*time.Millisecond)
			if pose.Moving != tc.want {
				t.Fatalf("Moving = %v, want %v", pose.Moving, tc.want)
			}
		})
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{1, 1},
		{-1, -1},
		{math.Pi + 0.5, -math.Pi + 0.5},
		{-math.Pi - 0.5, math.Pi - 0.5},
		{2 * math.Pi, 0},
		{-6, 2*math.Pi - 6},
	}
	for _, tc := range cases {
		if got := wrapAngle(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("wrapAngle(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPoseCarriesNonPositionalFields(t *testing.T) {
	pose := poseAt(t,
		protocol.PlayerState{Weapon: protocol.WeaponFists},
		protocol.PlayerState{Name: "Player abcd", Weapon: protocol.WeaponWatergun, Attacking: true},
		50*time.Millisecond,
		10*time.Millisecond,
	)
	if pose.Name != "Player abcd" || pose.Weapon != protocol.WeaponWatergun || !pose.Attacking {
		t.Fatalf("discrete fields must come from the newest snapshot: %+v", pose)
	}
}
