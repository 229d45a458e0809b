package status

import (
	"errors"
	"time"

	"github.com/zeusync/arena/internal/core/combat"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/systems"
)

const SystemName = "status"

// maxCatchUp bounds how many missed DoT ticks a single frame replays.
const maxCatchUp = 4

type Config struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

func DefaultConfig() Config {
	return Config{SweepInterval: time.Second, StaleAfter: 2 * time.Second}
}

// System re-evaluates expiry every tick, drives DoT ticks through the combat
// engine and runs the periodic safety sweep.
type System struct {
	registry  *Registry
	engine    *combat.Engine
	cfg       Config
	logger    log.Log
	lastSweep time.Time
}

func NewSystem(registry *Registry, engine *combat.Engine, cfg Config, logger log.Log) *System {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &System{
		registry: registry,
		engine:   engine,
		cfg:      cfg,
		logger:   logger.With(log.System(SystemName)),
	}
}

func (s *System) Name() string         { return SystemName }
func (s *System) Phase() systems.Phase { return systems.PhaseStatus }

func (s *System) Update(tick systems.Tick) error {
	now := tick.Now
	err := s.tickDamage(now, tick.Number)
	s.registry.Expire(now, tick.Number)

	if s.lastSweep.IsZero() {
		s.lastSweep = now
	} else if now.Sub(s.lastSweep) >= s.cfg.SweepInterval {
		s.lastSweep = now
		if n := s.registry.Sweep(now, s.cfg.StaleAfter, tick.Number); n > 0 {
			s.logger.Info("safety sweep cleared effects", log.Int("count", n))
		}
	}
	return err
}

// tickDamage fires every DoT tick due by now, up to and including the
// effect's end.
func (s *System) tickDamage(now time.Time, tick uint64) error {
	var all error
	s.registry.each(func(e *Effect) {
		def := s.registry.defs[e.Type]
		if !def.Ticks() || e.NextTick.IsZero() {
			return
		}
		end := e.End()
		for fired := 0; !e.NextTick.After(now) && !e.NextTick.After(end); fired++ {
			if fired == maxCatchUp {
				// drop the backlog instead of bursting it
				e.NextTick = now.Add(def.TickInterval)
				break
			}
			hit := combat.Hit{
				Attacker:              e.Source,
				Target:                e.Target,
				Raw:                   def.DamagePerTick * float64(max(1, e.StackCount)),
				DamageType:            def.DamageType,
				Source:                combat.SourceDoT,
				BypassInvulnerability: true,
			}
			if _, err := s.engine.Resolve(hit, now, tick); err != nil {
				all = errors.Join(all, err)
			}
			e.NextTick = e.NextTick.Add(def.TickInterval)
			e.LastUpdate = now
		}
	})
	return all
}
