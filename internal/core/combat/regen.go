package combat

import (
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/systems"
)

const RegenSystemName = "combat.regen"

// RegenSystem refills shields and health of locally owned entities once their
// post-hit delays have elapsed. Shadows are skipped: their scalars come from
// snapshots.
type RegenSystem struct {
	world   *ecs.World
	health  *ecs.Store[components.Health]
	shields *ecs.Store[components.Shield]
	remotes *ecs.Store[components.RemoteIdentity]
}

func NewRegenSystem(world *ecs.World) *RegenSystem {
	return &RegenSystem{
		world:   world,
		health:  ecs.StoreOf[components.Health](world),
		shields: ecs.StoreOf[components.Shield](world),
		remotes: ecs.StoreOf[components.RemoteIdentity](world),
	}
}

func (s *RegenSystem) Name() string         { return RegenSystemName }
func (s *RegenSystem) Phase() systems.Phase { return systems.PhaseCombat }

func (s *RegenSystem) Update(tick systems.Tick) error {
	dt := tick.Seconds()
	if dt <= 0 {
		return nil
	}
	for _, id := range s.world.Query(s.health.Type()) {
		if s.remotes.Has(id) {
			continue
		}
		h, _ := s.health.Get(id)
		if h.IsDead {
			continue
		}
		if sh, ok := s.shields.Get(id); ok && sh.RegenRate > 0 && sh.Current < sh.Max && !sh.InRegenDelay(tick.Now) {
			sh.Current += sh.RegenRate * dt
			sh.Clamp()
		}
		if h.RegenPerSecond > 0 && h.Current < h.Max && (h.LastDamageAt.IsZero() || tick.Now.Sub(h.LastDamageAt) >= h.RegenDelay) {
			h.Current += h.RegenPerSecond * dt
			h.Clamp()
		}
	}
	return nil
}
