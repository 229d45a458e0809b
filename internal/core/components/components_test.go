package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zeusync/arena/internal/core/systems/physics"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

func TestMovementSpeedMultiplier(t *testing.T) {
	m := Movement{MaxSpeed: 10}

	t.Run("no modifiers", func(t *testing.T) {
		assert.Equal(t, 10.0, m.EffectiveMaxSpeed(at(0)))
	})

	t.Run("freeze dominates slow", func(t *testing.T) {
		mm := m
		mm.FrozenUntil = at(5000)
		mm.SlowUntil, mm.SlowFactor = at(6000), 0.5
		assert.Zero(t, mm.EffectiveMaxSpeed(at(1500)))
		assert.Equal(t, 5.0, mm.EffectiveMaxSpeed(at(5500)))
		assert.Equal(t, 10.0, mm.EffectiveMaxSpeed(at(6000)))
	})

	t.Run("corruption recovers", func(t *testing.T) {
		mm := m
		mm.CorruptedStart, mm.CorruptedUntil, mm.CorruptedFloor = at(0), at(1000), 0.2
		assert.InDelta(t, 2.0, mm.EffectiveMaxSpeed(at(0)), 1e-9)
		assert.InDelta(t, 6.0, mm.EffectiveMaxSpeed(at(500)), 1e-9)
		assert.InDelta(t, 10.0, mm.EffectiveMaxSpeed(at(1000)), 1e-9)
	})

	t.Run("clear expired", func(t *testing.T) {
		mm := m
		mm.FrozenUntil = at(100)
		mm.SlowUntil, mm.SlowFactor = at(300), 0.5
		mm.ClearExpired(at(200))
		assert.True(t, mm.FrozenUntil.IsZero())
		assert.Equal(t, 0.5, mm.SlowFactor)
	})
}

func TestHealthInvulnerability(t *testing.T) {
	var h Health
	h.GrantInvulnerability(InvulnerableBlock, at(0), 2*time.Second)
	h.GrantInvulnerability(InvulnerableDodge, at(100), 100*time.Millisecond)

	assert.Equal(t, InvulnerableBlock, h.InvulnerableKind, "a weaker grant never downgrades an open window")
	assert.Equal(t, 1900*time.Millisecond, h.InvulnerableRemaining(at(100)))
	assert.Zero(t, h.InvulnerableRemaining(at(2000)))

	h.GrantInvulnerability(InvulnerableDodge, at(3000), time.Second)
	assert.Equal(t, InvulnerableDodge, h.InvulnerableKind)
}

func TestClamp(t *testing.T) {
	h := Health{Current: 120, Max: 100}
	h.Clamp()
	assert.Equal(t, 100.0, h.Current)

	s := Shield{Current: -5, Max: 50}
	s.Clamp()
	assert.Zero(t, s.Current)
}

func TestColliderGeometry(t *testing.T) {
	c := Collider{Shape: ShapeCylinder, Radius: 3, Height: 8}
	assert.InDelta(t, 5.0, c.BoundingRadius(), 1e-9)
	assert.Equal(t, 4.0, c.Center(physicsOrigin()).Y)
	assert.True(t, PlayerMask.Has(LayerEnvironment))
	assert.False(t, PlayerMask.Has(LayerPlayer))
	assert.False(t, ShadowMask.Has(LayerPlayer))
}

func physicsOrigin() physics.Vec3 { return physics.Vec3{} }
