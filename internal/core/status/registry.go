package status

import (
	"fmt"
	"slices"
	"time"

	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
)

const EventEffectChanged = "status.effect_changed"

type Change uint8

const (
	ChangeApplied Change = iota
	ChangeRefreshed
	ChangeExtended
	ChangeExpired
	// ChangeCleared is a removal that did not come from a normal expiry:
	// cleanse, target death, or the stale sweep.
	ChangeCleared
)

func (c Change) String() string {
	switch c {
	case ChangeApplied:
		return "applied"
	case ChangeRefreshed:
		return "refreshed"
	case ChangeExtended:
		return "extended"
	case ChangeExpired:
		return "expired"
	default:
		return "cleared"
	}
}

// EffectChanged is published for every lifecycle step of an effect.
type EffectChanged struct {
	Target    ecs.EntityID
	Type      EffectType
	Change    Change
	Stacks    int
	Remaining time.Duration
}

type key struct {
	target ecs.EntityID
	typ    EffectType
}

// Registry owns every active effect and the movement modifiers they imply.
type Registry struct {
	defs      map[EffectType]Definition
	abilities AbilityEffects
	effects   map[key]*Effect

	world     *ecs.World
	movements *ecs.Store[components.Movement]
	health    *ecs.Store[components.Health]
	bus       bus.EventBus
	logger    log.Log
}

func NewRegistry(world *ecs.World, defs map[EffectType]Definition, abilities AbilityEffects, eventBus bus.EventBus, logger log.Log) *Registry {
	if defs == nil {
		defs = DefaultDefinitions()
	}
	if abilities == nil {
		abilities = DefaultAbilityEffects()
	}
	r := &Registry{
		defs:      defs,
		abilities: abilities,
		effects:   make(map[key]*Effect),
		world:     world,
		movements: ecs.StoreOf[components.Movement](world),
		health:    ecs.StoreOf[components.Health](world),
		bus:       eventBus,
		logger:    logger.With(log.Component("status")),
	}
	world.OnEntityRemoved(r.forget)
	return r
}

func (r *Registry) Definition(t EffectType) (Definition, bool) {
	d, ok := r.defs[t]
	return d, ok
}

func (r *Registry) Len() int { return len(r.effects) }

// Apply puts an effect of type typ on target. A zero duration takes the
// type's default. If the type is already active its end moves to
// max(old end, now+duration) and, for stackable types, the stack count grows.
func (r *Registry) Apply(target ecs.EntityID, typ EffectType, duration time.Duration, source ecs.EntityID, now time.Time, tick uint64) (Effect, error) {
	def, ok := r.defs[typ]
	if !ok {
		return Effect{}, fmt.Errorf("apply %d: %w", typ, ErrUnknownEffect)
	}
	if duration < 0 {
		return Effect{}, fmt.Errorf("apply %s for %s: %w", typ, duration, ErrMalformedDuration)
	}
	if !r.world.Alive(target) {
		return Effect{}, fmt.Errorf("apply %s to %d: %w", typ, target, ErrTargetNotAlive)
	}
	if h, ok := r.health.Get(target); ok && h.IsDead {
		return Effect{}, fmt.Errorf("apply %s to %d: %w", typ, target, ErrTargetDead)
	}
	if duration == 0 {
		duration = def.DefaultDuration
	}

	k := key{target: target, typ: typ}
	change := ChangeApplied
	e, exists := r.effects[k]
	if exists && !e.Expired(now) {
		change = ChangeRefreshed
		if end := now.Add(duration); end.After(e.End()) {
			e.Duration = end.Sub(e.Start)
		}
		if def.Stackable && (def.MaxStacks <= 0 || e.StackCount < def.MaxStacks) {
			e.StackCount++
		}
		e.Source = source
		e.LastUpdate = now
	} else {
		e = &Effect{
			Target:     target,
			Type:       typ,
			Source:     source,
			Start:      now,
			Duration:   duration,
			StackCount: 1,
			LastUpdate: now,
		}
		if def.Ticks() {
			e.NextTick = now.Add(def.TickInterval)
		}
		r.effects[k] = e
	}

	r.writeModifier(def, e, change == ChangeApplied, now)
	r.publish(e, change, now, tick)
	return *e, nil
}

// ApplyAbility looks the ability up in the ability table. ok is false when the
// ability carries no status effect.
func (r *Registry) ApplyAbility(ability string, target, source ecs.EntityID, now time.Time, tick uint64) (Effect, bool, error) {
	ae, ok := r.abilities[ability]
	if !ok {
		return Effect{}, false, nil
	}
	e, err := r.Apply(target, ae.Effect, ae.Duration, source, now, tick)
	return e, err == nil, err
}

// Extend moves the end of an active effect to until when that is later. It
// is how server-side extensions reach effects whose client timer is already
// running.
func (r *Registry) Extend(target ecs.EntityID, typ EffectType, until time.Time, now time.Time, tick uint64) bool {
	e, ok := r.effects[key{target: target, typ: typ}]
	if !ok || e.Expired(now) || !until.After(e.End()) {
		return false
	}
	e.Duration = until.Sub(e.Start)
	e.LastUpdate = now
	r.writeModifier(r.defs[typ], e, false, now)
	r.publish(e, ChangeExtended, now, tick)
	return true
}

// Remove clears an effect before it expires.
func (r *Registry) Remove(target ecs.EntityID, typ EffectType, now time.Time, tick uint64) bool {
	k := key{target: target, typ: typ}
	e, ok := r.effects[k]
	if !ok {
		return false
	}
	r.drop(k, e, ChangeCleared, now, tick)
	return true
}

func (r *Registry) Get(target ecs.EntityID, typ EffectType) (Effect, bool) {
	e, ok := r.effects[key{target: target, typ: typ}]
	if !ok {
		return Effect{}, false
	}
	return *e, true
}

// Active lists the unexpired effects on target ordered by type.
func (r *Registry) Active(target ecs.EntityID, now time.Time) []Effect {
	var out []Effect
	for k, e := range r.effects {
		if k.target == target && !e.Expired(now) {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b Effect) int { return int(a.Type) - int(b.Type) })
	return out
}

// Expire removes every effect whose end has passed and every effect on a
// dead target. It returns the number removed.
func (r *Registry) Expire(now time.Time, tick uint64) int {
	n := 0
	for _, k := range r.sortedKeys() {
		e := r.effects[k]
		switch {
		case e.Expired(now):
			r.drop(k, e, ChangeExpired, now, tick)
		case r.targetDead(k.target):
			r.drop(k, e, ChangeCleared, now, tick)
		default:
			continue
		}
		n++
	}
	return n
}

// Sweep force-clears records that have not been touched for longer than
// their duration plus staleAfter, records on vanished targets, and movement
// modifiers left behind without a backing record.
func (r *Registry) Sweep(now time.Time, staleAfter time.Duration, tick uint64) int {
	n := 0
	for _, k := range r.sortedKeys() {
		e := r.effects[k]
		if !r.world.Alive(k.target) || now.Sub(e.LastUpdate) > e.Duration+staleAfter {
			r.logger.Warn("clearing stale status effect",
				log.Entity(uint64(k.target)),
				log.String("effect", k.typ.String()),
				log.Time("last_update", e.LastUpdate),
			)
			r.drop(k, e, ChangeCleared, now, tick)
			n++
		}
	}

	r.movements.Each(func(id ecs.EntityID, m *components.Movement) {
		if _, ok := r.effects[key{id, EffectFreeze}]; !ok && !m.FrozenUntil.IsZero() {
			m.FrozenUntil = time.Time{}
		}
		if _, ok := r.effects[key{id, EffectSlow}]; !ok && !m.SlowUntil.IsZero() {
			m.SlowUntil, m.SlowFactor = time.Time{}, 0
		}
		if _, ok := r.effects[key{id, EffectCorrupted}]; !ok && !m.CorruptedUntil.IsZero() {
			m.CorruptedStart, m.CorruptedUntil, m.CorruptedFloor = time.Time{}, time.Time{}, 0
		}
	})
	return n
}

// each visits effects in deterministic order.
func (r *Registry) each(fn func(*Effect)) {
	for _, k := range r.sortedKeys() {
		if e, ok := r.effects[k]; ok {
			fn(e)
		}
	}
}

func (r *Registry) sortedKeys() []key {
	keys := make([]key, 0, len(r.effects))
	for k := range r.effects {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if a.target != b.target {
			if a.target < b.target {
				return -1
			}
			return 1
		}
		return int(a.typ) - int(b.typ)
	})
	return keys
}

func (r *Registry) targetDead(id ecs.EntityID) bool {
	h, ok := r.health.Get(id)
	return ok && h.IsDead
}

func (r *Registry) drop(k key, e *Effect, change Change, now time.Time, tick uint64) {
	delete(r.effects, k)
	r.clearModifier(k)
	r.publish(e, change, now, tick)
}

// forget runs when the target entity is destroyed.
func (r *Registry) forget(id ecs.EntityID) {
	for k := range r.effects {
		if k.target == id {
			delete(r.effects, k)
		}
	}
}

func (r *Registry) writeModifier(def Definition, e *Effect, fresh bool, now time.Time) {
	if !def.Movement() {
		return
	}
	m, ok := r.movements.Get(e.Target)
	if !ok {
		return
	}
	end := e.End()
	switch def.Type {
	case EffectFreeze:
		m.FrozenUntil = end
	case EffectSlow:
		m.SlowUntil, m.SlowFactor = end, def.SpeedMultiplier
	case EffectCorrupted:
		if fresh || m.CorruptedStart.IsZero() {
			m.CorruptedStart = now
		}
		m.CorruptedUntil, m.CorruptedFloor = end, def.SpeedMultiplier
	}
}

func (r *Registry) clearModifier(k key) {
	m, ok := r.movements.Get(k.target)
	if !ok {
		return
	}
	switch k.typ {
	case EffectFreeze:
		m.FrozenUntil = time.Time{}
	case EffectSlow:
		m.SlowUntil, m.SlowFactor = time.Time{}, 0
	case EffectCorrupted:
		m.CorruptedStart, m.CorruptedUntil, m.CorruptedFloor = time.Time{}, time.Time{}, 0
	}
}

func (r *Registry) publish(e *Effect, change Change, now time.Time, tick uint64) {
	r.logger.Debug("status effect "+change.String(),
		log.Entity(uint64(e.Target)),
		log.String("effect", e.Type.String()),
		log.Int("stacks", e.StackCount),
	)
	if r.bus == nil {
		return
	}
	evt := EffectChanged{
		Target:    e.Target,
		Type:      e.Type,
		Change:    change,
		Stacks:    e.StackCount,
		Remaining: e.Remaining(now),
	}
	if change == ChangeExpired || change == ChangeCleared {
		evt.Remaining = 0
	}
	if err := r.bus.Publish(bus.NewEvent(EventEffectChanged, "status", tick, evt)); err != nil {
		r.logger.Warn("effect change handler failed", log.Error(err))
	}
}
