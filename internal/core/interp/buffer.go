// Package interp turns irregular network samples into continuous motion for
// remote entities. The local entity is simulated directly and never buffered.
package interp

import (
	"time"

	"github.com/zeusync/arena/internal/core/systems/physics"
	"github.com/zeusync/arena/pkg/generic"
)

const (
	DefaultCapacity         = 32
	DefaultMaxExtrapolation = 250 * time.Millisecond
	DefaultRecovery         = 100 * time.Millisecond
)

// Sample is one authoritative observation stamped with its receipt time.
type Sample struct {
	Time     time.Time
	Position physics.Vec3
	Rotation physics.Quat
}

// State describes how a sampled pose was produced.
type State uint8

const (
	StateEmpty State = iota
	// StateClamped means the render time precedes the oldest sample.
	StateClamped
	StateInterpolated
	// StateExtrapolated means the buffer is starved and the pose is projected
	// along the last known velocity.
	StateExtrapolated
	// StateFrozen means extrapolation ran out (or the feed is held) and the
	// pose no longer advances.
	StateFrozen
)

func (s State) String() string {
	switch s {
	case StateClamped:
		return "clamped"
	case StateInterpolated:
		return "interpolated"
	case StateExtrapolated:
		return "extrapolated"
	case StateFrozen:
		return "frozen"
	default:
		return "empty"
	}
}

// Buffer is a bounded, timestamp-ordered sample list.
type Buffer struct {
	samples          *generic.Ring[Sample]
	maxExtrapolation time.Duration
	recovery         time.Duration
	held             bool
	dropped          uint64

	// last produced pose, and the pose a recovery blend starts from
	produced  bool
	lastPos   physics.Vec3
	lastRot   physics.Quat
	lastState State
	blending  bool
	blendFrom physics.Vec3
	blendRot  physics.Quat
	blendAt   time.Time
}

func NewBuffer(capacity int, maxExtrapolation time.Duration) *Buffer {
	if capacity < 2 {
		capacity = 2
	}
	if maxExtrapolation < 0 {
		maxExtrapolation = 0
	}
	return &Buffer{
		samples:          generic.NewRing[Sample](capacity),
		maxExtrapolation: maxExtrapolation,
		recovery:         DefaultRecovery,
	}
}

// SetRecovery sets how long the pose takes to blend back onto the sampled
// path after the buffer was starved. Zero snaps immediately.
func (b *Buffer) SetRecovery(d time.Duration) { b.recovery = max(d, 0) }

// Push appends s. Samples not strictly newer than the newest one are dropped
// so the list stays increasing; on overflow the oldest sample is evicted.
func (b *Buffer) Push(s Sample) bool {
	if !s.Position.IsFinite() || !s.Rotation.IsFinite() {
		b.dropped++
		return false
	}
	if last, ok := b.samples.Last(); ok && !s.Time.After(last.Time) {
		b.dropped++
		return false
	}
	s.Rotation = s.Rotation.Normalize()
	b.samples.Push(s)
	b.held = false
	return true
}

// Hold stops extrapolation: the entity freezes at its last known pose until
// the next Push.
func (b *Buffer) Hold() { b.held = true }

func (b *Buffer) Held() bool { return b.held }

func (b *Buffer) Len() int { return b.samples.Len() }

// Dropped counts rejected samples.
func (b *Buffer) Dropped() uint64 { return b.dropped }

func (b *Buffer) Latest() (Sample, bool) { return b.samples.Last() }

func (b *Buffer) Oldest() (Sample, bool) { return b.samples.First() }

// Velocity is derived from the two newest samples.
func (b *Buffer) Velocity() physics.Vec3 {
	n := b.samples.Len()
	if n < 2 {
		return physics.Vec3{}
	}
	prev, last := b.samples.At(n-2), b.samples.At(n-1)
	dt := last.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return physics.Vec3{}
	}
	return last.Position.Sub(prev.Position).Scale(1 / dt)
}

// Sample returns the pose at renderTime.
//
// Between two samples position is lerped and rotation slerped. Before the
// oldest sample the oldest pose is returned. Past the newest sample the pose
// is extrapolated along the last velocity for at most the configured bound,
// after which it stays where extrapolation stopped; it never runs unbounded.
//
// When samples arrive again after extrapolating or freezing, the output
// blends from the last produced pose onto the sampled path over the recovery
// window instead of jumping back.
func (b *Buffer) Sample(renderTime time.Time) (physics.Vec3, physics.Quat, State) {
	pos, rot, state := b.sample(renderTime)
	if state == StateEmpty {
		return pos, rot, state
	}

	starved := b.lastState == StateExtrapolated || b.lastState == StateFrozen
	if b.produced && starved && (state == StateInterpolated || state == StateClamped) && b.recovery > 0 {
		b.blending = true
		b.blendFrom, b.blendRot, b.blendAt = b.lastPos, b.lastRot, renderTime
	}
	if b.blending {
		k := float64(renderTime.Sub(b.blendAt)) / float64(b.recovery)
		if k >= 1 {
			b.blending = false
		} else {
			k = max(k, 0)
			pos = physics.Lerp(b.blendFrom, pos, k)
			rot = physics.Slerp(b.blendRot, rot, k)
		}
	}

	b.produced, b.lastPos, b.lastRot, b.lastState = true, pos, rot, state
	return pos, rot, state
}

func (b *Buffer) sample(renderTime time.Time) (physics.Vec3, physics.Quat, State) {
	n := b.samples.Len()
	if n == 0 {
		return physics.Vec3{}, physics.Identity(), StateEmpty
	}

	first := b.samples.At(0)
	if !renderTime.After(first.Time) {
		return first.Position, first.Rotation, StateClamped
	}

	last := b.samples.At(n - 1)
	if renderTime.After(last.Time) {
		if b.held {
			return last.Position, last.Rotation, StateFrozen
		}
		ahead := renderTime.Sub(last.Time)
		state := StateExtrapolated
		if ahead >= b.maxExtrapolation {
			ahead = b.maxExtrapolation
			state = StateFrozen
		}
		pos := last.Position.Add(b.Velocity().Scale(ahead.Seconds()))
		return pos, last.Rotation, state
	}

	// binary search for the first sample strictly after renderTime
	lo, hi := 1, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if b.samples.At(mid).Time.After(renderTime) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	to := b.samples.At(lo)
	from := b.samples.At(lo - 1)

	span := to.Time.Sub(from.Time)
	t := float64(renderTime.Sub(from.Time)) / float64(span)
	return physics.Lerp(from.Position, to.Position, t), physics.Slerp(from.Rotation, to.Rotation, t), StateInterpolated
}

// Reset drops every sample.
func (b *Buffer) Reset() {
	b.samples.Clear()
	b.held = false
	b.produced, b.blending, b.lastState = false, false, StateEmpty
}
