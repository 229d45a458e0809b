package combat

import (
	"time"

	"github.com/zeusync/arena/internal/core/collision"
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/systems"
)

const HazardSystemName = "combat.hazard"

// HazardSystem turns this tick's collision contacts with hazard zones into
// environment hits. A body standing in a zone is hit on first contact and
// then once per Interval; leaving the zone resets the timer. Shadows are
// skipped because the server reports their damage.
type HazardSystem struct {
	world    *ecs.World
	engine   *Engine
	contacts *collision.Contacts
	logger   log.Log

	hazards *ecs.Store[components.Hazard]
	remotes *ecs.Store[components.RemoteIdentity]
	next    map[collision.Pair]time.Time
}

func NewHazardSystem(world *ecs.World, engine *Engine, contacts *collision.Contacts, logger log.Log) *HazardSystem {
	return &HazardSystem{
		world:    world,
		engine:   engine,
		contacts: contacts,
		logger:   logger.With(log.System(HazardSystemName)),
		hazards:  ecs.StoreOf[components.Hazard](world),
		remotes:  ecs.StoreOf[components.RemoteIdentity](world),
		next:     make(map[collision.Pair]time.Time),
	}
}

func (s *HazardSystem) Name() string         { return HazardSystemName }
func (s *HazardSystem) Phase() systems.Phase { return systems.PhaseCombat }

func (s *HazardSystem) Update(tick systems.Tick) error {
	for pair := range s.next {
		if !s.contacts.Touching(pair.A, pair.B) {
			delete(s.next, pair)
		}
	}

	for _, id := range s.world.Query(s.hazards.Type()) {
		hz, _ := s.hazards.Get(id)
		for _, ct := range s.contacts.Involving(id) {
			target := ct.Other(id)
			if s.remotes.Has(target) || s.hazards.Has(target) {
				continue
			}
			if due, ok := s.next[ct.Pair]; ok && tick.Now.Before(due) {
				continue
			}
			s.next[ct.Pair] = tick.Now.Add(hz.Interval)

			res, err := s.engine.Resolve(Hit{
				Attacker:   id,
				Target:     target,
				Raw:        hz.Damage,
				DamageType: hz.DamageType,
				Source:     SourceEnvironment,
				Critical:   new(bool),
			}, tick.Now, tick.Number)
			if err != nil {
				s.logger.Warn("hazard hit rejected", log.Entity(uint64(target)), log.Error(err))
				continue
			}
			if res.Rejected != RejectNone {
				s.logger.Debug("hazard hit blocked", log.Entity(uint64(target)), log.String("reason", res.Rejected.String()))
			}
		}
	}
	return nil
}
