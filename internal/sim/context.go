// Package sim assembles the arena simulation: it owns the per-session
// context, the inbox fed by the transport, the tick orchestration and the
// outbound intent throttling.
package sim

import (
	"fmt"
	"time"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/collision"
	"github.com/zeusync/arena/internal/core/combat"
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/status"
	"github.com/zeusync/arena/internal/core/systems"
	"github.com/zeusync/arena/internal/core/systems/interpolation"
	"github.com/zeusync/arena/internal/core/systems/motion"
)

// Clock returns the current simulation time.
type Clock func() time.Time

// Context carries everything systems share for one session. It is built once
// and handed to systems at construction; nothing in the simulation reads
// package-level state.
type Context struct {
	Config     config.Config
	Logger     log.Log
	Bus        bus.EventBus
	Clock      Clock
	World      *ecs.World
	IDs        *netsync.IDMap
	Status     *status.Registry
	Combat     *combat.Engine
	Contacts   *collision.Contacts
	Reconciler *netsync.Reconciler
	Deferred   *Deferred
	Outbound   *Outbound
}

func NewContext(cfg config.Config, logger log.Log, eventBus bus.EventBus, clock Clock) (*Context, error) {
	if clock == nil {
		clock = time.Now
	}
	defs, err := cfg.StatusDefinitions()
	if err != nil {
		return nil, err
	}
	abilities, err := cfg.AbilityEffects()
	if err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	components.Register(world)

	c := &Context{
		Config:   cfg,
		Logger:   logger,
		Bus:      eventBus,
		Clock:    clock,
		World:    world,
		IDs:      netsync.NewIDMap(),
		Contacts: collision.NewContacts(),
	}
	c.Combat = combat.NewEngine(world, cfg.CombatConfig(), eventBus, logger)
	c.Status = status.NewRegistry(world, defs, abilities, eventBus, logger)
	c.Reconciler = netsync.NewReconciler(world, c.IDs, c.Combat, c.Status, eventBus, cfg.NetsyncConfig(), logger)
	c.Deferred = NewDeferred(c.Alive)
	c.Outbound = NewOutbound(nil, cfg.Outbound.AnimationRate, cfg.Outbound.PositionRate, logger)
	return c, nil
}

// Alive reports whether id still exists and has not been retired.
func (c *Context) Alive(id ecs.EntityID) bool {
	return c.World.Alive(id) && !c.Reconciler.Retired(id)
}

// Systems builds the per-tick pipeline in phase order. Collision fills
// Contacts, which the hazard system reads in the combat phase.
func (c *Context) Systems() ([]systems.System, error) {
	coll, err := collision.NewSystem(c.World, c.Config.Collision.CellSize, c.Contacts, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("collision system: %w", err)
	}
	return []systems.System{
		motion.NewSystem(c.World),
		coll,
		combat.NewRegenSystem(c.World),
		combat.NewHazardSystem(c.World, c.Combat, c.Contacts, c.Logger),
		status.NewSystem(c.Status, c.Combat, c.Config.StatusConfig(), c.Logger),
		interpolation.NewSystem(c.World, c.Config.Interpolation.Delay, c.Logger),
		NewOutboundSystem(c),
	}, nil
}

// NewScheduler registers every system and seals the order.
func NewScheduler(c *Context) (*systems.Scheduler, error) {
	list, err := c.Systems()
	if err != nil {
		return nil, err
	}
	s := systems.NewScheduler(c.Logger)
	for _, sys := range list {
		if err := s.Register(sys); err != nil {
			return nil, err
		}
	}
	s.Seal()
	return s, nil
}
