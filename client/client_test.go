package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/icodeninjaX/officeparty/protocol"
)

type recordingListener struct {
	mu     sync.Mutex
	joined []string
	left   []string
}

func (l *recordingListener) PeerJoined(id string) {
	l.mu.Lock()
	l.joined = append(l.joined, id)
	l.mu.Unlock()
}

func (l *recordingListener) PeerLeft(id string) {
	l.mu.Lock()
	l.left = append(l.left, id)
	l.mu.Unlock()
}

func newTestClient(listener PeerListener) *Client {
	c := New(Options{
		Host:     "relay.test:3000",
		Listener: listener,
	})
	c.state = StateConnected // pretend the dial already happened
	return c
}

func initMsg(id string, players ...protocol.PlayerState) protocol.ServerMessage {
	return protocol.ServerMessage{
		Type: protocol.KindInit,
		Init: &protocol.InitMessage{ID: id, ResumeToken: "tok", Players: players},
	}
}

func TestDisabledClientStaysSolo(t *testing.T) {
	c := New(Options{Host: ""})
	if c.Enabled() {
		t.Fatal("client with no host must be disabled")
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("disabled connect must be a silent no-op, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("disabled client state = %v", c.State())
	}
	if got := c.PlayerCount(); got != 1 {
		t.Fatalf("solo count = %d, want 1", got)
	}
	// Discrete sends are no-ops, never errors.
	c.SendShot([3]float64{}, [3]float64{0, 0, -1})
	c.SendHit("anyone")
}

func TestConnectAfterCloseFails(t *testing.T) {
	c := New(Options{Host: "relay.test:3000"})
	c.Close()

	// A dial here would produce a client whose outbound loops are gone:
	// it would reach ready and receive frames but never send one.
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("closed client must refuse to connect")
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", c.State())
	}
}

func TestInitSeedsPeersAndAssignsIdentity(t *testing.T) {
	c := newTestClient(nil)
	peer := protocol.NewSpawnState("peer-1", 0)
	c.handleMessage(initMsg("me", peer))

	if c.ID() != "me" {
		t.Fatalf("identity = %q, want me", c.ID())
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready", c.State())
	}
	if c.ResumeToken() != "tok" {
		t.Fatalf("resume token = %q", c.ResumeToken())
	}
	if got := c.PlayerCount(); got != 2 {
		t.Fatalf("player count = %d, want 2", got)
	}

	pose, ok := c.Pose("peer-1")
	if !ok {
		t.Fatal("seeded peer has no pose")
	}
	if pose.X != protocol.SpawnX || pose.Z != protocol.SpawnZ {
		t.Fatalf("seeded peer not at spawn: %+v", pose)
	}
}

func TestInitNotifiesListenerForExistingPeers(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(listener)

	c.handleMessage(initMsg("me",
		protocol.PlayerState{ID: "peer-1"},
		protocol.PlayerState{ID: "peer-2"},
	))

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.joined) != 2 {
		t.Fatalf("init peers must announce through the observer, got %v", listener.joined)
	}
	seen := map[string]bool{}
	for _, id := range listener.joined {
		seen[id] = true
	}
	if !seen["peer-1"] || !seen["peer-2"] {
		t.Fatalf("joined notifications = %v", listener.joined)
	}
}

func TestJoinedAndLeftNotifyListener(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(listener)
	c.handleMessage(initMsg("me"))

	c.handleMessage(protocol.ServerMessage{
		Type:   protocol.KindJoined,
		Joined: &protocol.PlayerState{ID: "peer-1"},
	})
	c.handleMessage(protocol.ServerMessage{Type: protocol.KindLeft, LeftID: "peer-1"})

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.joined) != 1 || listener.joined[0] != "peer-1" {
		t.Fatalf("joined notifications = %v", listener.joined)
	}
	if len(listener.left) != 1 || listener.left[0] != "peer-1" {
		t.Fatalf("left notifications = %v", listener.left)
	}
	if got := c.PlayerCount(); got != 1 {
		t.Fatalf("player count after leave = %d, want 1", got)
	}
}

func TestStateForUnknownPeerSeedsAndNotifies(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(listener)
	c.handleMessage(initMsg("me"))

	// A state frame racing a missed joined must create the peer, not
	// crash or get dropped.
	c.handleMessage(protocol.ServerMessage{
		Type:  protocol.KindState,
		State: &protocol.PlayerState{ID: "ghost", X: 3},
	})

	if _, ok := c.Pose("ghost"); !ok {
		t.Fatal("ghost peer was not seeded")
	}
	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.joined) != 1 || listener.joined[0] != "ghost" {
		t.Fatalf("defensive seed should notify, got %v", listener.joined)
	}
}

func TestStateRotationThroughDispatch(t *testing.T) {
	c := newTestClient(nil)
	base := time.Now()
	clock := base
	c.now = func() time.Time { return clock }

	c.handleMessage(initMsg("me", protocol.PlayerState{ID: "peer-1", X: 0}))

	clock = base.Add(50 * time.Millisecond)
	c.handleMessage(protocol.ServerMessage{
		Type:  protocol.KindState,
		State: &protocol.PlayerState{ID: "peer-1", X: 2},
	})

	clock = base.Add(75 * time.Millisecond)
	pose, _ := c.Pose("peer-1")
	if pose.X < 0.9 || pose.X > 1.1 {
		t.Fatalf("midpoint x = %v, want 1", pose.X)
	}
}

func TestOwnFramesAreIgnored(t *testing.T) {
	c := newTestClient(nil)
	c.handleMessage(initMsg("me"))

	c.handleMessage(protocol.ServerMessage{
		Type:  protocol.KindState,
		State: &protocol.PlayerState{ID: "me", X: 1},
	})
	if _, ok := c.Pose("me"); ok {
		t.Fatal("own state must not enter the remote buffer")
	}

	c.handleMessage(protocol.ServerMessage{
		Type: protocol.KindShot,
		Shot: &protocol.ShotEvent{ID: "me", ShotID: 5},
	})
	if got := len(c.RemoteShots()); got != 0 {
		t.Fatalf("own shot echoed into the visual list, %d entries", got)
	}
}

func TestRemoteShotLifecycle(t *testing.T) {
	c := newTestClient(nil)
	c.handleMessage(initMsg("me"))

	c.handleMessage(protocol.ServerMessage{
		Type: protocol.KindShot,
		Shot: &protocol.ShotEvent{ID: "peer-1", ShotID: 9, StartPos: [3]float64{0, 1, 0}, Direction: [3]float64{0, 0, -1}},
	})

	shots := c.RemoteShots()
	if len(shots) != 1 || shots[0].PlayerID != "peer-1" || shots[0].ShotID != 9 {
		t.Fatalf("remote shots = %+v", shots)
	}

	c.ReleaseShot("peer-1", 9)
	if got := len(c.RemoteShots()); got != 0 {
		t.Fatalf("released shot lingered, %d entries", got)
	}
}

func TestHitMarksTarget(t *testing.T) {
	c := newTestClient(nil)
	base := time.Now()
	clock := base
	c.now = func() time.Time { return clock }
	c.handleMessage(initMsg("me"))

	c.handleMessage(protocol.ServerMessage{
		Type: protocol.KindHit,
		Hit:  &protocol.HitEvent{AttackerID: "peer-1", TargetID: "peer-2", Weapon: protocol.WeaponKnife},
	})

	if !c.RecentlyHit("peer-2") {
		t.Fatal("target not marked")
	}
	if c.RecentlyHit("peer-1") {
		t.Fatal("attacker wrongly marked")
	}

	clock = base.Add(hitDisplayDuration + time.Millisecond)
	if c.RecentlyHit("peer-2") {
		t.Fatal("hit marker survived the display window")
	}
}

func TestDisconnectedClearsRemoteState(t *testing.T) {
	listener := &recordingListener{}
	c := newTestClient(listener)
	c.handleMessage(initMsg("me", protocol.PlayerState{ID: "peer-1"}))
	c.handleMessage(protocol.ServerMessage{
		Type: protocol.KindShot,
		Shot: &protocol.ShotEvent{ID: "peer-1", ShotID: 1},
	})

	c.disconnected()

	if c.State() != StateDisconnected {
		t.Fatalf("state = %v", c.State())
	}
	if got := c.PlayerCount(); got != 1 {
		t.Fatalf("player count = %d, want 1", got)
	}
	if got := len(c.RemoteShots()); got != 0 {
		t.Fatalf("shots survived disconnect, %d entries", got)
	}
	// The identity and resume token survive for the next Connect.
	if c.ID() != "me" || c.ResumeToken() != "tok" {
		t.Fatalf("identity/token lost: %q %q", c.ID(), c.ResumeToken())
	}
}
