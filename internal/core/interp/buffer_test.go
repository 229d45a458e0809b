package interp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/core/systems/physics"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

func sample(ms int, x float64) Sample {
	return Sample{Time: at(ms), Position: physics.V3(x, 0, 0), Rotation: physics.Identity()}
}

func TestBufferInterpolates(t *testing.T) {
	b := NewBuffer(8, 200*time.Millisecond)
	require.True(t, b.Push(sample(0, 0)))
	require.True(t, b.Push(sample(100, 1)))

	pos, _, state := b.Sample(at(50))
	assert.Equal(t, StateInterpolated, state)
	assert.InDelta(t, 0.5, pos.X, 1e-9)
	assert.Zero(t, pos.Y)
	assert.Zero(t, pos.Z)
}

func TestBufferRotation(t *testing.T) {
	b := NewBuffer(8, 0)
	b.Push(Sample{Time: at(0), Rotation: physics.Identity()})
	b.Push(Sample{Time: at(100), Rotation: physics.YawQuat(math.Pi / 2)})

	_, rot, _ := b.Sample(at(50))
	assert.InDelta(t, math.Pi/4, rot.Yaw(), 1e-9)
}

func TestBufferClampsBeforeOldest(t *testing.T) {
	b := NewBuffer(8, 0)
	b.Push(sample(100, 3))
	b.Push(sample(200, 4))

	pos, _, state := b.Sample(at(0))
	assert.Equal(t, StateClamped, state)
	assert.Equal(t, 3.0, pos.X)
}

func TestBufferEmpty(t *testing.T) {
	b := NewBuffer(4, 0)
	pos, rot, state := b.Sample(at(0))
	assert.Equal(t, StateEmpty, state)
	assert.Equal(t, physics.Vec3{}, pos)
	assert.Equal(t, physics.Identity(), rot)
}

func TestBufferRejectsOutOfOrder(t *testing.T) {
	b := NewBuffer(4, 0)
	require.True(t, b.Push(sample(100, 1)))
	assert.False(t, b.Push(sample(100, 2)), "duplicate timestamp")
	assert.False(t, b.Push(sample(50, 2)), "older timestamp")
	assert.False(t, b.Push(Sample{Time: at(200), Position: physics.V3(math.NaN(), 0, 0)}))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, uint64(3), b.Dropped())
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	b := NewBuffer(3, 0)
	for i := 0; i < 5; i++ {
		b.Push(sample(i*100, float64(i)))
	}
	assert.Equal(t, 3, b.Len())
	oldest, _ := b.Oldest()
	assert.Equal(t, at(200), oldest.Time)
}

func TestBufferExtrapolationIsBounded(t *testing.T) {
	b := NewBuffer(8, 200*time.Millisecond)
	b.Push(sample(0, 0))
	b.Push(sample(100, 1)) // 10 units/s

	t.Run("extrapolates along velocity", func(t *testing.T) {
		pos, _, state := b.Sample(at(150))
		assert.Equal(t, StateExtrapolated, state)
		assert.InDelta(t, 1.5, pos.X, 1e-9)
	})

	t.Run("freezes after the bound", func(t *testing.T) {
		pos, _, state := b.Sample(at(300))
		assert.Equal(t, StateFrozen, state)
		assert.InDelta(t, 3.0, pos.X, 1e-9)

		far, _, _ := b.Sample(at(60_000))
		assert.InDelta(t, 3.0, far.X, 1e-9, "a stalled entity never runs away")
	})

	t.Run("held buffers stop at the last sample", func(t *testing.T) {
		b.Hold()
		pos, _, state := b.Sample(at(150))
		assert.Equal(t, StateFrozen, state)
		assert.Equal(t, 1.0, pos.X)

		b.Push(sample(200, 2))
		assert.False(t, b.Held())
	})
}

// Sweeping render time with a small step never jumps by more than the speed
// of the fastest segment allows, including across sample boundaries and while
// samples keep arriving ahead of the render cursor.
func TestBufferContinuity(t *testing.T) {
	const delay = 100
	b := NewBuffer(6, 150*time.Millisecond)
	xs := []float64{0, 1, 1.5, 4, 4.2, 6, 7, 7, 9, 12}

	next := 0
	var prev *physics.Vec3
	for now := 0; now <= 1000; now++ {
		for next < len(xs) && next*100 <= now {
			require.True(t, b.Push(sample(next*100, xs[next])))
			next++
		}
		pos, _, _ := b.Sample(at(now - delay))
		if prev != nil {
			// max segment speed is 3 units / 100ms
			require.LessOrEqual(t, math.Abs(pos.X-prev.X), 0.03+1e-9, "jump at t=%dms", now)
		}
		p := pos
		prev = &p
	}
}

// A buffer that ran dry and then receives a late sample must not snap back
// from the extrapolated pose onto the sampled path.
func TestBufferRecoversWithoutJump(t *testing.T) {
	const delay = 100
	b := NewBuffer(8, 250*time.Millisecond)
	b.SetRecovery(delay * time.Millisecond)
	require.True(t, b.Push(sample(0, 0)))
	require.True(t, b.Push(sample(100, 1)))

	var prev *physics.Vec3
	sawExtrapolation := false
	for now := 100; now <= 800; now++ {
		if now == 400 {
			require.True(t, b.Push(sample(400, 1)))
		}
		pos, _, state := b.Sample(at(now - delay))
		if state == StateExtrapolated {
			sawExtrapolation = true
		}
		if prev != nil {
			// extrapolation runs at 10 units/s; the blend covers at most
			// the 2 unit gap over the recovery window
			require.LessOrEqual(t, math.Abs(pos.X-prev.X), 0.01+0.02+1e-9, "jump at now=%dms", now)
		}
		p := pos
		prev = &p
	}
	assert.True(t, sawExtrapolation)

	pos, _, state := b.Sample(at(700))
	assert.Equal(t, StateFrozen, state)
	assert.InDelta(t, 1.0, pos.X, 1e-9, "the blend settles on the sampled path")
}

func TestBufferRecoveryCanBeDisabled(t *testing.T) {
	b := NewBuffer(8, 250*time.Millisecond)
	b.SetRecovery(0)
	b.Push(sample(0, 0))
	b.Push(sample(100, 1))

	pos, _, _ := b.Sample(at(200))
	assert.InDelta(t, 2.0, pos.X, 1e-9)

	b.Push(sample(300, 1))
	pos, _, state := b.Sample(at(201))
	assert.Equal(t, StateInterpolated, state)
	assert.InDelta(t, 1.0, pos.X, 1e-9)
}
