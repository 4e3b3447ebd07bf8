package client

import (
	"sync"
	"time"
)

// hitDisplayDuration is how long a player stays marked after taking a hit,
// long enough for the flinch animation to play out.
const hitDisplayDuration = 800 * time.Millisecond

// RemoteShot is a visual-only projectile fired by a peer. The renderer owns
// it until it calls ReleaseShot; no hit detection happens on the receiving
// side, only the shooter runs hit tests.
type RemoteShot struct {
	PlayerID  string
	ShotID    int64
	StartPos  [3]float64
	Direction [3]float64
}

// shotList collects remote shots awaiting pickup by the renderer.
type shotList struct {
	mu    sync.Mutex
	shots []RemoteShot
}

func (l *shotList) add(shot RemoteShot) {
	l.mu.Lock()
	l.shots = append(l.shots, shot)
	l.mu.Unlock()
}

func (l *shotList) snapshot() []RemoteShot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RemoteShot, len(l.shots))
	copy(out, l.shots)
	return out
}

// release drops one finished projectile. Shot ids are only unique per
// sender, so the owner is part of the key: two peers may be flying the same
// ShotID at once.
func (l *shotList) release(playerID string, shotID int64) {
	l.mu.Lock()
	kept := l.shots[:0]
	for _, s := range l.shots {
		if s.PlayerID != playerID || s.ShotID != shotID {
			kept = append(kept, s)
		}
	}
	l.shots = kept
	l.mu.Unlock()
}

func (l *shotList) clear() {
	l.mu.Lock()
	l.shots = nil
	l.mu.Unlock()
}

// hitTracker remembers which players were hit recently. Entries expire on
// read; there is no background timer.
type hitTracker struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func newHitTracker() *hitTracker {
	return &hitTracker{expires: make(map[string]time.Time)}
}

func (h *hitTracker) mark(id string, now time.Time) {
	h.mu.Lock()
	h.expires[id] = now.Add(hitDisplayDuration)
	h.mu.Unlock()
}

func (h *hitTracker) recentlyHit(id string, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	expiry, ok := h.expires[id]
	if !ok {
		return false
	}
	if now.After(expiry) {
		delete(h.expires, id)
		return false
	}
	return true
}

func (h *hitTracker) clear() {
	h.mu.Lock()
	h.expires = make(map[string]time.Time)
	h.mu.Unlock()
}
