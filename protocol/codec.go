package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a frame carries a type discriminator the
// protocol does not define.
var ErrUnknownKind = errors.New("protocol: unknown message kind")

// envelope is the outer shape of every frame: a discriminator plus a payload
// whose shape depends on it. The payload is left raw until the discriminator
// has been checked.
type envelope struct {
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data,omitempty"`
	ID          string          `json:"id,omitempty"`
	ResumeToken string          `json:"resumeToken,omitempty"`
	Players     []PlayerState   `json:"players,omitempty"`
	Player      *PlayerState    `json:"player,omitempty"`
}

// ClientMessage is an inbound frame from a client. Exactly one payload field
// is set, matching Type.
type ClientMessage struct {
	Type  string
	State *PlayerState
	Shot  *ShotEvent
	Hit   *HitEvent
}

// InitMessage seeds a freshly connected client: its assigned identity, a
// token it may present to reclaim that identity after a reconnect, and every
// other player currently in the room.
type InitMessage struct {
	ID          string
	ResumeToken string
	Players     []PlayerState
}

// ServerMessage is a frame from the relay to a client. Exactly one payload
// field is set, matching Type.
type ServerMessage struct {
	Type   string
	Init   *InitMessage
	Joined *PlayerState
	State  *PlayerState
	LeftID string
	Shot   *ShotEvent
	Hit    *HitEvent
}

// DecodeClientMessage parses a raw frame from a client. Anything that is not
// well-formed JSON with a known discriminator and a payload of the right
// shape is rejected with an error; callers are expected to drop such frames
// rather than fail the connection.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientMessage{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	msg := ClientMessage{Type: env.Type}
	switch env.Type {
	case KindState:
		var state PlayerState
		if err := json.Unmarshal(env.Data, &state); err != nil {
			return ClientMessage{}, fmt.Errorf("protocol: decode state: %w", err)
		}
		msg.State = &state
	case KindShot:
		var shot ShotEvent
		if err := json.Unmarshal(env.Data, &shot); err != nil {
			return ClientMessage{}, fmt.Errorf("protocol: decode shot: %w", err)
		}
		msg.Shot = &shot
	case KindHit:
		var hit HitEvent
		if err := json.Unmarshal(env.Data, &hit); err != nil {
			return ClientMessage{}, fmt.Errorf("protocol: decode hit: %w", err)
		}
		msg.Hit = &hit
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	return msg, nil
}

// DecodeServerMessage parses a relay frame on the client side.
func DecodeServerMessage(raw []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ServerMessage{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	msg := ServerMessage{Type: env.Type}
	switch env.Type {
	case KindInit:
		msg.Init = &InitMessage{ID: env.ID, ResumeToken: env.ResumeToken, Players: env.Players}
	case KindJoined:
		if env.Player == nil {
			return ServerMessage{}, fmt.Errorf("protocol: joined without player")
		}
		msg.Joined = env.Player
	case KindState:
		var state PlayerState
		if err := json.Unmarshal(env.Data, &state); err != nil {
			return ServerMessage{}, fmt.Errorf("protocol: decode state: %w", err)
		}
		msg.State = &state
	case KindLeft:
		msg.LeftID = env.ID
	case KindShot:
		var shot ShotEvent
		if err := json.Unmarshal(env.Data, &shot); err != nil {
			return ServerMessage{}, fmt.Errorf("protocol: decode shot: %w", err)
		}
		msg.Shot = &shot
	case KindHit:
		var hit HitEvent
		if err := json.Unmarshal(env.Data, &hit); err != nil {
			return ServerMessage{}, fmt.Errorf("protocol: decode hit: %w", err)
		}
		msg.Hit = &hit
	default:
		return ServerMessage{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	return msg, nil
}

func marshalData(kind string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		// All payload types marshal cleanly; reaching this means a
		// programming error, not bad input.
		panic(err)
	}
	raw, err := json.Marshal(envelope{Type: kind, Data: data})
	if err != nil {
		panic(err)
	}
	return raw
}

// EncodeState frames a player state for the wire.
func EncodeState(state PlayerState) []byte {
	return marshalData(KindState, state)
}

// EncodeShot frames a projectile event for the wire.
func EncodeShot(shot ShotEvent) []byte {
	return marshalData(KindShot, shot)
}

// EncodeHit frames a hit event for the wire.
func EncodeHit(hit HitEvent) []byte {
	return marshalData(KindHit, hit)
}

// EncodeInit frames the post-connect seed message. players must not include
// the recipient itself.
func EncodeInit(id, resumeToken string, players []PlayerState) []byte {
	if players == nil {
		players = []PlayerState{}
	}
	// players is always present, even when empty, so a client can tell an
	// empty room apart from a malformed frame.
	raw, err := json.Marshal(struct {
		Type        string        `json:"type"`
		ID          string        `json:"id"`
		ResumeToken string        `json:"resumeToken,omitempty"`
		Players     []PlayerState `json:"players"`
	}{Type: KindInit, ID: id, ResumeToken: resumeToken, Players: players})
	if err != nil {
		panic(err)
	}
	return raw
}

// EncodeJoined frames a new-player announcement.
func EncodeJoined(player PlayerState) []byte {
	raw, err := json.Marshal(envelope{Type: KindJoined, Player: &player})
	if err != nil {
		panic(err)
	}
	return raw
}

// EncodeLeft frames a departure announcement.
func EncodeLeft(id string) []byte {
	raw, err := json.Marshal(envelope{Type: KindLeft, ID: id})
	if err != nil {
		panic(err)
	}
	return raw
}
