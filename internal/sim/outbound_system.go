package sim

import (
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/systems"
)

const OutboundSystemName = "outbound"

// OutboundSystem mirrors the local pose to the server at the end of every
// tick and releases throttled updates.
type OutboundSystem struct {
	ctx        *Context
	transforms *ecs.Store[components.Transform]
	movements  *ecs.Store[components.Movement]
}

func NewOutboundSystem(ctx *Context) *OutboundSystem {
	return &OutboundSystem{
		ctx:        ctx,
		transforms: ecs.StoreOf[components.Transform](ctx.World),
		movements:  ecs.StoreOf[components.Movement](ctx.World),
	}
}

func (s *OutboundSystem) Name() string         { return OutboundSystemName }
func (s *OutboundSystem) Phase() systems.Phase { return systems.PhaseDownstream }

func (s *OutboundSystem) Update(tick systems.Tick) error {
	out := s.ctx.Outbound
	if _, local := s.ctx.Reconciler.Local(); s.ctx.World.Ready(local) {
		if tr, ok := s.transforms.Get(local); ok {
			u := netsync.PositionUpdate{Position: tr.Position, Rotation: tr.Rotation}
			if mv, ok := s.movements.Get(local); ok {
				u.Velocity = mv.Velocity
			}
			if _, err := out.SendPosition(u, tick.Now); err != nil {
				return err
			}
		}
	}
	return out.Flush(tick.Now)
}
