// Package motion integrates velocity for locally simulated bodies.
package motion

import (
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/systems"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

const SystemName = "motion"

// System applies acceleration, caps speed at the modifier-adjusted maximum and
// moves the transform. Bodies with CanMove unset, shadows included, are left
// alone.
type System struct {
	world      *ecs.World
	transforms *ecs.Store[components.Transform]
	movements  *ecs.Store[components.Movement]
}

func NewSystem(world *ecs.World) *System {
	return &System{
		world:      world,
		transforms: ecs.StoreOf[components.Transform](world),
		movements:  ecs.StoreOf[components.Movement](world),
	}
}

func (s *System) Name() string         { return SystemName }
func (s *System) Phase() systems.Phase { return systems.PhasePhysics }

func (s *System) Update(tick systems.Tick) error {
	dt := tick.Seconds()
	if dt <= 0 {
		return nil
	}
	ecs.Each2(s.world, func(_ ecs.EntityID, tr *components.Transform, m *components.Movement) {
		if !m.CanMove {
			return
		}
		m.ClearExpired(tick.Now)
		m.Velocity = m.Velocity.Add(m.Acceleration.Scale(dt))
		switch {
		case m.Frozen(tick.Now):
			m.Halt()
		case m.MaxSpeed > 0:
			m.Velocity = m.Velocity.ClampLen(m.EffectiveMaxSpeed(tick.Now))
		}
		if !m.Velocity.IsFinite() {
			m.Halt()
			return
		}
		tr.Position = tr.Position.Add(m.Velocity.Scale(dt))
		if h := m.Velocity.XZ(); !h.IsZero() {
			tr.Rotation = physics.YawQuat(physics.Heading(h))
		}
	})
	return nil
}
