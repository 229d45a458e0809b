package transport

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zeusync/arena/internal/core/netsync"
)

// Kind tags the body of a frame.
type Kind uint8

const (
	KindSnapshot Kind = iota + 1
	KindDamage
	KindDebuff
	KindAttack
	KindAbility
	KindPosition
	KindAnimation
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindDamage:
		return "damage"
	case KindDebuff:
		return "debuff"
	case KindAttack:
		return "attack"
	case KindAbility:
		return "ability"
	case KindPosition:
		return "position"
	case KindAnimation:
		return "animation"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame is the envelope of every websocket message. Body is the msgpack
// encoding of the message named by Kind.
type Frame struct {
	Kind     Kind               `msgpack:"k"`
	Session  string             `msgpack:"s,omitempty"`
	Sequence uint64             `msgpack:"q,omitempty"`
	Body     msgpack.RawMessage `msgpack:"b"`
}

// Encode wraps an outbound intent or inbound message into a frame.
func Encode(session string, seq uint64, msg any) ([]byte, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", kind, err)
	}
	return msgpack.Marshal(&Frame{Kind: kind, Session: session, Sequence: seq, Body: body})
}

func kindOf(msg any) (Kind, error) {
	switch msg.(type) {
	case netsync.SnapshotBatch, *netsync.SnapshotBatch:
		return KindSnapshot, nil
	case netsync.DamageEvent, *netsync.DamageEvent:
		return KindDamage, nil
	case netsync.DebuffEvent, *netsync.DebuffEvent:
		return KindDebuff, nil
	case netsync.AttackIntent, *netsync.AttackIntent:
		return KindAttack, nil
	case netsync.AbilityIntent, *netsync.AbilityIntent:
		return KindAbility, nil
	case netsync.PositionUpdate, *netsync.PositionUpdate:
		return KindPosition, nil
	case netsync.AnimationUpdate, *netsync.AnimationUpdate:
		return KindAnimation, nil
	default:
		return 0, fmt.Errorf("%T: %w", msg, ErrUnknownIntent)
	}
}

// Decode unwraps a frame and returns its typed message as a value.
func Decode(data []byte) (Frame, any, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return f, nil, fmt.Errorf("decode frame: %w", err)
	}
	var (
		msg any
		err error
	)
	switch f.Kind {
	case KindSnapshot:
		msg, err = decodeBody[netsync.SnapshotBatch](f.Body)
	case KindDamage:
		msg, err = decodeBody[netsync.DamageEvent](f.Body)
	case KindDebuff:
		msg, err = decodeBody[netsync.DebuffEvent](f.Body)
	case KindAttack:
		msg, err = decodeBody[netsync.AttackIntent](f.Body)
	case KindAbility:
		msg, err = decodeBody[netsync.AbilityIntent](f.Body)
	case KindPosition:
		msg, err = decodeBody[netsync.PositionUpdate](f.Body)
	case KindAnimation:
		msg, err = decodeBody[netsync.AnimationUpdate](f.Body)
	default:
		return f, nil, fmt.Errorf("%s: %w", f.Kind, ErrUnknownKind)
	}
	if err != nil {
		return f, nil, fmt.Errorf("decode %s body: %w", f.Kind, err)
	}
	return f, msg, nil
}

func decodeBody[T any](body []byte) (T, error) {
	var v T
	err := msgpack.Unmarshal(body, &v)
	return v, err
}
