package netsync

import (
	"fmt"
	"math"
	"time"

	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

// Snapshot is one authoritative entity row.
type Snapshot struct {
	ID        string                `msgpack:"id"`
	Kind      components.RemoteKind `msgpack:"kind"`
	Owner     string                `msgpack:"owner,omitempty"`
	Position  physics.Vec3          `msgpack:"position"`
	Rotation  physics.Quat          `msgpack:"rotation"`
	Health    float64               `msgpack:"health"`
	MaxHealth float64               `msgpack:"max_health"`
	Shield    float64               `msgpack:"shield"`
	MaxShield float64               `msgpack:"max_shield"`
	IsDead    bool                  `msgpack:"is_dead"`
	Level     int                   `msgpack:"level"`
}

func (s Snapshot) validate() error {
	if s.ID == "" {
		return fmt.Errorf("snapshot without id: %w", ErrMalformedPayload)
	}
	if !s.Position.IsFinite() || !s.Rotation.IsFinite() {
		return fmt.Errorf("snapshot %s pose: %w", s.ID, ErrMalformedPayload)
	}
	for _, v := range [...]float64{s.Health, s.MaxHealth, s.Shield, s.MaxShield} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("snapshot %s scalars: %w", s.ID, ErrMalformedPayload)
		}
	}
	if s.Level < 0 {
		return fmt.Errorf("snapshot %s level %d: %w", s.ID, s.Level, ErrMalformedPayload)
	}
	return nil
}

// SnapshotBatch is one received snapshot. Received is stamped by the
// transport on arrival. A Partial batch carries only changed rows, so absent
// ids are not retired.
type SnapshotBatch struct {
	Received time.Time  `msgpack:"-"`
	Sequence uint64     `msgpack:"seq"`
	Partial  bool       `msgpack:"partial,omitempty"`
	Entities []Snapshot `msgpack:"entities"`
}

// DamageEvent is a server-reported hit.
type DamageEvent struct {
	SourceID   string  `msgpack:"source_id"`
	TargetID   string  `msgpack:"target_id"`
	Damage     float64 `msgpack:"damage"`
	DamageType string  `msgpack:"damage_type"`
	Source     string  `msgpack:"source,omitempty"`
	IsCritical *bool   `msgpack:"is_critical,omitempty"`
	Bypass     bool    `msgpack:"bypass,omitempty"`
}

// DebuffEvent applies or extends a status effect on a target.
type DebuffEvent struct {
	SourceID   string `msgpack:"source_id,omitempty"`
	TargetID   string `msgpack:"target_id"`
	DebuffType string `msgpack:"debuff_type,omitempty"`
	// Ability names the ability that landed when the server leaves the
	// effect to the client's ability table.
	Ability      string        `msgpack:"ability,omitempty"`
	DurationMS   int64         `msgpack:"duration_ms"`
	PositionHint *physics.Vec3 `msgpack:"position_hint,omitempty"`
	// Extend moves the end of an already active effect instead of applying.
	Extend bool `msgpack:"extend,omitempty"`
}

func (d DebuffEvent) Duration() time.Duration {
	return time.Duration(d.DurationMS) * time.Millisecond
}

// Disconnected is pushed by the transport when the feed drops.
type Disconnected struct {
	At     time.Time
	Reason string
}

// Outbound intents produced for the network collaborator.

type AttackIntent struct {
	AttackType string         `msgpack:"attack_type"`
	Position   physics.Vec3   `msgpack:"position"`
	Direction  physics.Vec3   `msgpack:"direction"`
	TargetID   string         `msgpack:"target_id,omitempty"`
	Metadata   map[string]any `msgpack:"metadata,omitempty"`
}

type AbilityIntent struct {
	AbilityType string         `msgpack:"ability_type"`
	Position    physics.Vec3   `msgpack:"position"`
	Direction   physics.Vec3   `msgpack:"direction"`
	TargetID    string         `msgpack:"target_id,omitempty"`
	Metadata    map[string]any `msgpack:"metadata,omitempty"`
}

type PositionUpdate struct {
	Position physics.Vec3 `msgpack:"position"`
	Rotation physics.Quat `msgpack:"rotation"`
	Velocity physics.Vec3 `msgpack:"velocity"`
}

type AnimationUpdate struct {
	State string `msgpack:"state"`
}
