package components

import (
	"time"

	"github.com/zeusync/arena/internal/core/systems/physics"
)

// Movement holds kinematic state plus the active movement modifiers. Each
// modifier kind exists at most once; re-application moves its deadline rather
// than adding a second instance.
type Movement struct {
	Velocity     physics.Vec3
	Acceleration physics.Vec3
	MaxSpeed     float64
	CanMove      bool

	FrozenUntil time.Time

	SlowUntil  time.Time
	SlowFactor float64

	CorruptedStart time.Time
	CorruptedUntil time.Time
	CorruptedFloor float64
}

func (m *Movement) Frozen(now time.Time) bool { return now.Before(m.FrozenUntil) }
func (m *Movement) Slowed(now time.Time) bool { return now.Before(m.SlowUntil) }
func (m *Movement) Corrupted(now time.Time) bool {
	return now.Before(m.CorruptedUntil) && m.CorruptedUntil.After(m.CorruptedStart)
}

// SpeedMultiplier combines the active modifiers. Freeze dominates; otherwise
// the strongest of slow and corruption applies.
func (m *Movement) SpeedMultiplier(now time.Time) float64 {
	if m.Frozen(now) {
		return 0
	}
	mul := 1.0
	if m.Slowed(now) {
		mul = min(mul, physics.Clamp(m.SlowFactor, 0, 1))
	}
	if m.Corrupted(now) {
		// recovers linearly from the floor back to full speed
		total := m.CorruptedUntil.Sub(m.CorruptedStart)
		progress := physics.Clamp(float64(now.Sub(m.CorruptedStart))/float64(total), 0, 1)
		floor := physics.Clamp(m.CorruptedFloor, 0, 1)
		mul = min(mul, floor+(1-floor)*progress)
	}
	return mul
}

// EffectiveMaxSpeed is MaxSpeed scaled by the active modifiers.
func (m *Movement) EffectiveMaxSpeed(now time.Time) float64 {
	return m.MaxSpeed * m.SpeedMultiplier(now)
}

// Halt zeroes velocity and acceleration.
func (m *Movement) Halt() {
	m.Velocity = physics.Vec3{}
	m.Acceleration = physics.Vec3{}
}

// ClearExpired resets modifier fields whose deadline has passed.
func (m *Movement) ClearExpired(now time.Time) {
	if !m.FrozenUntil.IsZero() && !now.Before(m.FrozenUntil) {
		m.FrozenUntil = time.Time{}
	}
	if !m.SlowUntil.IsZero() && !now.Before(m.SlowUntil) {
		m.SlowUntil = time.Time{}
		m.SlowFactor = 0
	}
	if !m.CorruptedUntil.IsZero() && !now.Before(m.CorruptedUntil) {
		m.CorruptedStart, m.CorruptedUntil = time.Time{}, time.Time{}
		m.CorruptedFloor = 0
	}
}
