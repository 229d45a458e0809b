// Package components holds the per-entity data of the arena simulation. The
// types carry no behavior beyond small invariant-preserving helpers; systems
// own the logic.
package components

import (
	"time"

	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/interp"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

// Transform is written by whichever system controls the entity: local
// simulation, interpolation for shadows, or collision push-out.
type Transform struct {
	Position physics.Vec3
	Rotation physics.Quat
}

// Health is mutated only through the combat engine or authoritative snapshots.
type Health struct {
	Current float64
	Max     float64

	RegenPerSecond float64
	RegenDelay     time.Duration
	LastDamageAt   time.Time

	InvulnerableUntil time.Time
	InvulnerableKind  InvulnerabilityKind

	IsDead bool
}

// InvulnerabilityKind says why a target is invulnerable; the bypass policy keys
// off it.
type InvulnerabilityKind uint8

const (
	InvulnerableNone InvulnerabilityKind = iota
	// InvulnerableSpawn protects freshly spawned entities.
	InvulnerableSpawn
	// InvulnerableDodge covers short evasive windows.
	InvulnerableDodge
	// InvulnerableBlock is absolute: no damage source bypasses it.
	InvulnerableBlock
)

func (k InvulnerabilityKind) String() string {
	switch k {
	case InvulnerableSpawn:
		return "spawn"
	case InvulnerableDodge:
		return "dodge"
	case InvulnerableBlock:
		return "block"
	default:
		return "none"
	}
}

// Clamp forces Current into [0, Max].
func (h *Health) Clamp() {
	if h.Max < 0 {
		h.Max = 0
	}
	h.Current = physics.Clamp(h.Current, 0, h.Max)
}

// InvulnerableRemaining returns how long the invulnerability window still runs.
func (h *Health) InvulnerableRemaining(now time.Time) time.Duration {
	if h.InvulnerableUntil.IsZero() || !now.Before(h.InvulnerableUntil) {
		return 0
	}
	return h.InvulnerableUntil.Sub(now)
}

// GrantInvulnerability opens (or extends) a window of the given kind.
func (h *Health) GrantInvulnerability(kind InvulnerabilityKind, now time.Time, d time.Duration) {
	until := now.Add(d)
	if h.InvulnerableRemaining(now) == 0 {
		h.InvulnerableUntil, h.InvulnerableKind = until, kind
		return
	}
	if until.After(h.InvulnerableUntil) {
		h.InvulnerableUntil = until
	}
	h.InvulnerableKind = max(h.InvulnerableKind, kind)
}

// Shield is always consulted before Health in the damage pipeline.
type Shield struct {
	Current float64
	Max     float64

	RegenRate  float64 // per second
	RegenDelay time.Duration
	LastHitAt  time.Time
}

func (s *Shield) Clamp() {
	if s.Max < 0 {
		s.Max = 0
	}
	s.Current = physics.Clamp(s.Current, 0, s.Max)
}

// InRegenDelay reports whether the post-hit delay is still running.
func (s *Shield) InRegenDelay(now time.Time) bool {
	return !s.LastHitAt.IsZero() && now.Sub(s.LastHitAt) < s.RegenDelay
}

// Level is the authoritative character level written by the network layer.
type Level struct {
	Value int
}

// Scaling carries the owner-level-derived multiplier of towers and summons.
type Scaling struct {
	OwnerLevel int
	Factor     float64
}

// RemoteKind distinguishes the kinds of authoritative objects.
type RemoteKind uint8

const (
	KindPlayer RemoteKind = iota
	KindTower
	KindSummon
	KindNPC
)

func (k RemoteKind) String() string {
	switch k {
	case KindTower:
		return "tower"
	case KindSummon:
		return "summon"
	case KindNPC:
		return "npc"
	default:
		return "player"
	}
}

// Owned reports whether entities of this kind scale with an owner's level.
func (k RemoteKind) Owned() bool { return k == KindTower || k == KindSummon }

// RemoteIdentity marks a shadow entity mirroring an authoritative object.
type RemoteIdentity struct {
	RemoteID      string
	Kind          RemoteKind
	OwnerRemoteID string
}

// LocalControl tags the single locally simulated entity.
type LocalControl struct {
	RemoteID string
}

// Animation is the locally driven animation state mirrored to the server.
type Animation struct {
	State string
	Since time.Time
}

// Register assigns component tags in a fixed order so every client agrees on
// them.
// Hazard is a static zone that damages every body touching it, once per
// Interval while the contact lasts.
type Hazard struct {
	Damage     float64
	DamageType string
	Interval   time.Duration
}

func Register(w *ecs.World) {
	ecs.Register[Transform](w)
	ecs.Register[Movement](w)
	ecs.Register[Health](w)
	ecs.Register[Shield](w)
	ecs.Register[Collider](w)
	ecs.Register[interp.Buffer](w)
	ecs.Register[RemoteIdentity](w)
	ecs.Register[LocalControl](w)
	ecs.Register[Level](w)
	ecs.Register[Scaling](w)
	ecs.Register[Animation](w)
	ecs.Register[Hazard](w)
}
