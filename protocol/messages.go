package protocol

import "fmt"

// Weapon is the closed set of tools a player can hold.
type Weapon string

const (
	WeaponFists    Weapon = "fists"
	WeaponKnife    Weapon = "knife"
	WeaponWatergun Weapon = "watergun"
)

// Valid reports whether w is one of the known weapons.
func (w Weapon) Valid() bool {
	switch w {
	case WeaponFists, WeaponKnife, WeaponWatergun:
		return true
	}
	return false
}

// PlayerState is one player's full physical state at an instant. It is
// replaced wholesale on every state message; there are no partial updates.
type PlayerState struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Yaw       float64 `json:"yaw"`
	Weapon    Weapon  `json:"weapon"`
	Attacking bool    `json:"attacking"`
	Timestamp int64   `json:"timestamp"`
}

// ShotEvent announces a projectile spawn. ShotID is chosen by the sender and
// only needs to be unique per sender; peers use it to release the visual once
// it finishes.
type ShotEvent struct {
	ID        string     `json:"id"`
	ShotID    int64      `json:"shotId"`
	StartPos  [3]float64 `json:"startPos"`
	Direction [3]float64 `json:"direction"`
}

// HitEvent is a client-side hit claim. The relay stamps AttackerID; TargetID
// and Weapon are trusted as sent.
type HitEvent struct {
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
	Weapon     Weapon `json:"weapon"`
}

// Message kinds. Clients send state/shot/hit; the relay additionally emits
// init/joined/left.
const (
	KindState  = "state"
	KindShot   = "shot"
	KindHit    = "hit"
	KindInit   = "init"
	KindJoined = "joined"
	KindLeft   = "left"
)

// Spawn position for a freshly connected player.
const (
	SpawnX = 0
	SpawnY = 0.3
	SpawnZ = 12
)

// NewSpawnState builds the default state a player holds between connecting
// and their first state message.
func NewSpawnState(id string, now int64) PlayerState {
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return PlayerState{
		ID:        id,
		Name:      fmt.Sprintf("Player %s", short),
		X:         SpawnX,
		Y:         SpawnY,
		Z:         SpawnZ,
		Yaw:       0,
		Weapon:    WeaponFists,
		Attacking: false,
		Timestamp: now,
	}
}
