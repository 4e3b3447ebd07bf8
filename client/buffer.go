package client

import (
	"sort"
	"sync"
	"time"

	"github.com/icodeninjaX/officeparty/protocol"
)

// remoteEntry holds the two most recent snapshots for one remote player.
// Older history is discarded; interpolation only ever needs the last pair.
type remoteEntry struct {
	prev           *protocol.PlayerState
	current        protocol.PlayerState
	receivedAt     time.Time
	prevReceivedAt time.Time
}

// RemoteBuffer is the client-side table of remote players, keyed by the
// relay-assigned identity. The inbound message goroutine writes it and the
// render loop reads it, so access is mutex guarded.
type RemoteBuffer struct {
	mu      sync.RWMutex
	entries map[string]*remoteEntry
}

func NewRemoteBuffer() *RemoteBuffer {
	return &RemoteBuffer{entries: make(map[string]*remoteEntry)}
}

// Seed installs a player whose motion history is unknown (init listing or
// joined announcement). Both slots hold the same snapshot and both
// timestamps are now, so the first interpolation renders a static pose
// instead of extrapolating from nothing.
func (b *RemoteBuffer) Seed(state protocol.PlayerState, now time.Time) {
	prev := state
	b.mu.Lock()
	b.entries[state.ID] = &remoteEntry{
		prev:           &prev,
		current:        state,
		receivedAt:     now,
		prevReceivedAt: now,
	}
	b.mu.Unlock()
}

// Store rotates the current snapshot into the previous slot and records the
// new one. An unknown identity (a state frame racing a missed joined) is
// seeded fresh instead; Store reports whether that happened.
func (b *RemoteBuffer) Store(state protocol.PlayerState, now time.Time) (seeded bool) {
	b.mu.Lock()
	entry, ok := b.entries[state.ID]
	if !ok {
		b.mu.Unlock()
		b.Seed(state, now)
		return true
	}
	rotated := entry.current
	entry.prev = &rotated
	entry.prevReceivedAt = entry.receivedAt
	entry.current = state
	entry.receivedAt = now
	b.mu.Unlock()
	return false
}

// Remove deletes a departed player.
func (b *RemoteBuffer) Remove(id string) {
	b.mu.Lock()
	delete(b.entries, id)
	b.mu.Unlock()
}

// Len returns the number of tracked remote players.
func (b *RemoteBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// IDs returns the tracked identities in sorted order.
func (b *RemoteBuffer) IDs() []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Current returns the most recent snapshot for id.
func (b *RemoteBuffer) Current(id string) (protocol.PlayerState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[id]
	if !ok {
		return protocol.PlayerState{}, false
	}
	return entry.current, true
}

// Clear drops every entry, used on disconnect.
func (b *RemoteBuffer) Clear() {
	b.mu.Lock()
	b.entries = make(map[string]*remoteEntry)
	b.mu.Unlock()
}
