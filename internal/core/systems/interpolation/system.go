// Package interpolation writes smoothed transforms for shadow entities.
package interpolation

import (
	"time"

	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/interp"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/systems"
)

const SystemName = "interpolation"

// Stats counts how the poses of the last tick were produced.
type Stats struct {
	Interpolated int
	Clamped      int
	Extrapolated int
	Frozen       int
	Empty        int
}

// System samples every buffer at now minus the interpolation delay and writes
// the result into Transform. The locally controlled entity is never touched.
type System struct {
	world  *ecs.World
	delay  time.Duration
	logger log.Log
	stats  Stats

	transforms *ecs.Store[components.Transform]
	buffers    *ecs.Store[interp.Buffer]
	local      *ecs.Store[components.LocalControl]
}

func NewSystem(world *ecs.World, delay time.Duration, logger log.Log) *System {
	return &System{
		world:      world,
		delay:      max(delay, 0),
		logger:     logger.With(log.System(SystemName)),
		transforms: ecs.StoreOf[components.Transform](world),
		buffers:    ecs.StoreOf[interp.Buffer](world),
		local:      ecs.StoreOf[components.LocalControl](world),
	}
}

func (s *System) Name() string         { return SystemName }
func (s *System) Phase() systems.Phase { return systems.PhaseInterpolation }

func (s *System) Delay() time.Duration { return s.delay }

func (s *System) Stats() Stats { return s.stats }

func (s *System) Update(tick systems.Tick) error {
	renderTime := tick.Now.Add(-s.delay)
	s.stats = Stats{}
	for _, id := range s.world.Query(s.transforms.Type(), s.buffers.Type()) {
		if s.local.Has(id) {
			continue
		}
		tr, _ := s.transforms.Get(id)
		buf, _ := s.buffers.Get(id)
		pos, rot, state := buf.Sample(renderTime)
		switch state {
		case interp.StateEmpty:
			s.stats.Empty++
			continue
		case interp.StateClamped:
			s.stats.Clamped++
		case interp.StateInterpolated:
			s.stats.Interpolated++
		case interp.StateExtrapolated:
			s.stats.Extrapolated++
		case interp.StateFrozen:
			s.stats.Frozen++
		}
		tr.Position, tr.Rotation = pos, rot
	}
	return nil
}
