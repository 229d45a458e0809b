package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/systems"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

var epoch = time.Unix(1_700_000_000, 0)

func spawn(t *testing.T, w *ecs.World, m components.Movement) (*components.Transform, *components.Movement) {
	t.Helper()
	id := w.CreateEntity()
	tr, err := ecs.Add(w, id, &components.Transform{Rotation: physics.Identity()})
	require.NoError(t, err)
	mv, err := ecs.Add(w, id, &m)
	require.NoError(t, err)
	require.NoError(t, w.NotifyEntityAdded(id))
	return tr, mv
}

func TestIntegration(t *testing.T) {
	w := ecs.NewWorld()
	components.Register(w)
	sys := NewSystem(w)

	tr, _ := spawn(t, w, components.Movement{Velocity: physics.V3(3, 0, 4), MaxSpeed: 10, CanMove: true})
	require.NoError(t, sys.Update(systems.Tick{Now: epoch, Delta: 500 * time.Millisecond}))

	assert.InDelta(t, 1.5, tr.Position.X, 1e-9)
	assert.InDelta(t, 2.0, tr.Position.Z, 1e-9)
	assert.InDelta(t, physics.Heading(physics.V3(3, 0, 4)), tr.Rotation.Yaw(), 1e-9)
}

func TestModifiersCapSpeed(t *testing.T) {
	w := ecs.NewWorld()
	components.Register(w)
	sys := NewSystem(w)

	slowTr, slowMv := spawn(t, w, components.Movement{
		Velocity: physics.V3(10, 0, 0), MaxSpeed: 10, CanMove: true,
		SlowUntil: epoch.Add(time.Second), SlowFactor: 0.5,
	})
	frozenTr, _ := spawn(t, w, components.Movement{
		Velocity: physics.V3(10, 0, 0), MaxSpeed: 10, CanMove: true,
		FrozenUntil: epoch.Add(time.Second),
	})

	require.NoError(t, sys.Update(systems.Tick{Now: epoch, Delta: time.Second}))

	assert.InDelta(t, 5.0, slowTr.Position.X, 1e-9)
	assert.InDelta(t, 5.0, slowMv.Velocity.Len(), 1e-9)
	assert.Zero(t, frozenTr.Position.X)
}

func TestShadowsDoNotIntegrate(t *testing.T) {
	w := ecs.NewWorld()
	components.Register(w)
	sys := NewSystem(w)

	tr, _ := spawn(t, w, components.Movement{Velocity: physics.V3(10, 0, 0), CanMove: false})
	require.NoError(t, sys.Update(systems.Tick{Now: epoch, Delta: time.Second}))
	assert.Zero(t, tr.Position.X)
}
