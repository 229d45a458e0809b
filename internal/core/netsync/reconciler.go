// Package netsync reconciles authoritative server state with the local world:
// it owns the remote id table, creates, updates and retires shadow entities,
// and routes server events into combat and status.
package netsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/arena/internal/core/combat"
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/interp"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/status"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

const (
	EventShadowSpawned = "netsync.shadow_spawned"
	EventShadowRetired = "netsync.shadow_retired"
)

// ShadowEvent reports a shadow lifecycle step.
type ShadowEvent struct {
	Entity   ecs.EntityID
	RemoteID string
	Kind     components.RemoteKind
}

type Config struct {
	BufferCapacity   int
	MaxExtrapolation time.Duration
	// Recovery is how long a shadow blends back onto its sampled path after
	// its buffer ran dry.
	Recovery          time.Duration
	TombstoneTicks    uint64
	DisconnectTimeout time.Duration
	// ScalingPerLevel is the factor gained per owner level above one.
	ScalingPerLevel float64
	ShadowRadius    float64
	ShadowHeight    float64
}

func DefaultConfig() Config {
	return Config{
		BufferCapacity:    interp.DefaultCapacity,
		MaxExtrapolation:  interp.DefaultMaxExtrapolation,
		Recovery:          interp.DefaultRecovery,
		TombstoneTicks:    1,
		DisconnectTimeout: 5 * time.Second,
		ScalingPerLevel:   0.1,
		ShadowRadius:      0.5,
		ShadowHeight:      1.8,
	}
}

type tombstone struct {
	remote string
	reapAt uint64
}

// Reconciler is the only writer of authoritative scalars on shadows.
type Reconciler struct {
	world  *ecs.World
	ids    *IDMap
	engine *combat.Engine
	status *status.Registry
	bus    bus.EventBus
	logger log.Log
	cfg    Config

	localRemote string
	local       ecs.EntityID

	tombstones   map[ecs.EntityID]tombstone
	disconnected bool
	lostAt       time.Time

	transforms *ecs.Store[components.Transform]
	movements  *ecs.Store[components.Movement]
	health     *ecs.Store[components.Health]
	shields    *ecs.Store[components.Shield]
	levels     *ecs.Store[components.Level]
	scaling    *ecs.Store[components.Scaling]
	identities *ecs.Store[components.RemoteIdentity]
	buffers    *ecs.Store[interp.Buffer]
}

func NewReconciler(world *ecs.World, ids *IDMap, engine *combat.Engine, registry *status.Registry, eventBus bus.EventBus, cfg Config, logger log.Log) *Reconciler {
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = interp.DefaultCapacity
	}
	if cfg.TombstoneTicks == 0 {
		cfg.TombstoneTicks = 1
	}
	return &Reconciler{
		world:      world,
		ids:        ids,
		engine:     engine,
		status:     registry,
		bus:        eventBus,
		logger:     logger.With(log.Component("netsync")),
		cfg:        cfg,
		tombstones: make(map[ecs.EntityID]tombstone),
		transforms: ecs.StoreOf[components.Transform](world),
		movements:  ecs.StoreOf[components.Movement](world),
		health:     ecs.StoreOf[components.Health](world),
		shields:    ecs.StoreOf[components.Shield](world),
		levels:     ecs.StoreOf[components.Level](world),
		scaling:    ecs.StoreOf[components.Scaling](world),
		identities: ecs.StoreOf[components.RemoteIdentity](world),
		buffers:    ecs.StoreOf[interp.Buffer](world),
	}
}

func (r *Reconciler) IDs() *IDMap { return r.ids }

// BindLocal declares which remote id the local player is. Snapshot rows with
// that id update the local entity's authoritative scalars and never spawn a
// shadow.
func (r *Reconciler) BindLocal(remote string, id ecs.EntityID) {
	if prev, ok := r.ids.Local(remote); ok && prev != id && r.isShadow(prev) {
		r.retire(prev, remote, 0)
	}
	r.localRemote, r.local = remote, id
	r.ids.Bind(remote, id)
}

func (r *Reconciler) Local() (string, ecs.EntityID) { return r.localRemote, r.local }

// Retired reports whether id is tombstoned.
func (r *Reconciler) Retired(id ecs.EntityID) bool {
	_, ok := r.tombstones[id]
	return ok
}

func (r *Reconciler) Disconnected() bool { return r.disconnected }

// ApplySnapshot reconciles one batch. Malformed rows are skipped, reported in
// the returned error and still count as present.
func (r *Reconciler) ApplySnapshot(batch SnapshotBatch, tick uint64) error {
	received := batch.Received
	if received.IsZero() {
		received = time.Now()
	}
	if r.disconnected {
		r.logger.Info("snapshot feed resumed", log.Duration("gap", received.Sub(r.lostAt)))
		r.disconnected = false
	}

	var all error
	present := make(map[string]struct{}, len(batch.Entities))
	leveled := make(map[string]struct{})

	for _, row := range batch.Entities {
		present[row.ID] = struct{}{}
		if err := row.validate(); err != nil {
			r.logger.Warn("dropping malformed snapshot row", log.Remote(row.ID), log.Error(err))
			all = errors.Join(all, err)
			continue
		}

		if row.ID == r.localRemote && r.local != ecs.NoEntity {
			if r.writeScalars(r.local, row, tick) {
				leveled[row.ID] = struct{}{}
			}
			r.ids.Touch(row.ID, received)
			continue
		}

		id, mapped := r.ids.Local(row.ID)
		if mapped && r.Retired(id) {
			// the old shadow is on its way out; keep its tombstone and let
			// the next batch spawn a fresh one once it is reaped
			continue
		}
		if !mapped {
			var err error
			if id, err = r.spawn(row, received, tick); err != nil {
				all = errors.Join(all, err)
				continue
			}
			// owned rows earlier in the batch were scaled before this owner existed
			leveled[row.ID] = struct{}{}
		} else {
			r.update(id, row, received)
		}
		if r.writeScalars(id, row, tick) {
			leveled[row.ID] = struct{}{}
		}
		r.ids.Touch(row.ID, received)
	}

	if !batch.Partial {
		for _, remote := range r.ids.Remotes() {
			if _, ok := present[remote]; ok || remote == r.localRemote {
				continue
			}
			if id, ok := r.ids.Local(remote); ok && !r.Retired(id) {
				r.retire(id, remote, tick)
			}
		}
	}

	for owner := range leveled {
		r.rescaleOwned(owner)
	}
	return all
}

// Maintain runs at the start of every tick: it reaps tombstones whose tick
// has come, retires shadows silent for longer than the disconnect timeout and
// keeps shadow kinematics zeroed.
func (r *Reconciler) Maintain(now time.Time, tick uint64) {
	for id, ts := range r.tombstones {
		if tick >= ts.reapAt {
			r.reap(id, ts)
		}
	}

	if r.cfg.DisconnectTimeout > 0 {
		for _, remote := range r.ids.Remotes() {
			if remote == r.localRemote {
				continue
			}
			id, _ := r.ids.Local(remote)
			seen, ok := r.ids.LastSeen(remote)
			if !ok || r.Retired(id) || now.Sub(seen) < r.cfg.DisconnectTimeout {
				continue
			}
			r.logger.Info("shadow timed out", log.Remote(remote), log.Time("last_seen", seen))
			r.retire(id, remote, tick)
		}
	}

	r.identities.Each(func(id ecs.EntityID, _ *components.RemoteIdentity) {
		if m, ok := r.movements.Get(id); ok {
			m.Halt()
		}
	})
}

// MarkDisconnected freezes every shadow in its last known state. They stay
// until the disconnect timeout passes without new data.
func (r *Reconciler) MarkDisconnected(at time.Time, reason string) {
	if r.disconnected {
		return
	}
	r.disconnected, r.lostAt = true, at
	r.logger.Warn("snapshot feed lost", log.String("reason", reason), log.Int("shadows", r.identities.Len()))
	r.buffers.Each(func(_ ecs.EntityID, b *interp.Buffer) { b.Hold() })
}

// ApplyDamage routes a server hit into the combat engine. Unknown or retired
// targets are dropped with a warning and never create an entity.
func (r *Reconciler) ApplyDamage(evt DamageEvent, now time.Time, tick uint64) (combat.Result, error) {
	target, err := r.resolveTarget(evt.TargetID, "damage")
	if err != nil {
		return combat.Result{}, err
	}
	source, err := combat.ParseDamageSource(evt.Source)
	if err != nil {
		r.logger.Warn("dropping damage event with bad source", log.Remote(evt.TargetID), log.Error(err))
		return combat.Result{}, fmt.Errorf("damage source: %w", errors.Join(ErrMalformedPayload, err))
	}
	attacker, _ := r.ids.Local(evt.SourceID)

	res, err := r.engine.Resolve(combat.Hit{
		Attacker:              attacker,
		Target:                target,
		Raw:                   evt.Damage,
		DamageType:            evt.DamageType,
		Source:                source,
		Critical:              evt.IsCritical,
		BypassInvulnerability: evt.Bypass,
		Authoritative:         true,
	}, now, tick)
	if err != nil {
		r.logger.Warn("dropping malformed damage event", log.Remote(evt.TargetID), log.Error(err))
	}
	return res, err
}

// ApplyDebuff applies or extends a status effect named by the server.
func (r *Reconciler) ApplyDebuff(evt DebuffEvent, now time.Time, tick uint64) (status.Effect, error) {
	target, err := r.resolveTarget(evt.TargetID, "debuff")
	if err != nil {
		return status.Effect{}, err
	}
	if evt.DebuffType == "" && evt.Ability != "" {
		return r.applyAbility(target, evt, now, tick)
	}
	typ, err := status.ParseEffectType(evt.DebuffType)
	if err != nil {
		r.logger.Warn("dropping unknown debuff", log.Remote(evt.TargetID), log.String("debuff", evt.DebuffType))
		return status.Effect{}, errors.Join(ErrMalformedPayload, err)
	}
	if evt.DurationMS < 0 {
		return status.Effect{}, fmt.Errorf("debuff duration %dms: %w", evt.DurationMS, ErrMalformedPayload)
	}
	if evt.PositionHint != nil && !evt.PositionHint.IsFinite() {
		return status.Effect{}, fmt.Errorf("debuff position hint: %w", ErrMalformedPayload)
	}
	source, _ := r.ids.Local(evt.SourceID)

	var effect status.Effect
	if evt.Extend {
		if !r.status.Extend(target, typ, now.Add(evt.Duration()), now, tick) {
			r.logger.Debug("debuff extension ignored", log.Remote(evt.TargetID), log.String("debuff", typ.String()))
		}
		effect, _ = r.status.Get(target, typ)
	} else {
		if effect, err = r.status.Apply(target, typ, evt.Duration(), source, now, tick); err != nil {
			r.logger.Warn("debuff rejected", log.Remote(evt.TargetID), log.Error(err))
			return status.Effect{}, err
		}
	}

	if evt.PositionHint != nil && typ == status.EffectFreeze {
		r.snapTo(target, *evt.PositionHint, now)
	}
	return effect, nil
}

func (r *Reconciler) applyAbility(target ecs.EntityID, evt DebuffEvent, now time.Time, tick uint64) (status.Effect, error) {
	source, _ := r.ids.Local(evt.SourceID)
	effect, ok, err := r.status.ApplyAbility(evt.Ability, target, source, now, tick)
	if err != nil {
		r.logger.Warn("ability effect rejected", log.Remote(evt.TargetID), log.String("ability", evt.Ability), log.Error(err))
		return status.Effect{}, err
	}
	if !ok {
		r.logger.Debug("ability carries no status effect", log.String("ability", evt.Ability))
		return status.Effect{}, nil
	}
	if evt.PositionHint != nil && evt.PositionHint.IsFinite() && effect.Type == status.EffectFreeze {
		r.snapTo(target, *evt.PositionHint, now)
	}
	return effect, nil
}

func (r *Reconciler) resolveTarget(remote, what string) (ecs.EntityID, error) {
	id, ok := r.ids.Local(remote)
	if !ok || !r.world.Alive(id) {
		r.logger.Warn("dropping "+what+" event for unknown remote", log.Remote(remote))
		return ecs.NoEntity, fmt.Errorf("%s target %q: %w", what, remote, ErrUnknownRemote)
	}
	if r.Retired(id) {
		r.logger.Warn("dropping "+what+" event for retired remote", log.Remote(remote))
		return ecs.NoEntity, fmt.Errorf("%s target %q: %w", what, remote, ErrRetiredRemote)
	}
	return id, nil
}

func (r *Reconciler) spawn(row Snapshot, received time.Time, tick uint64) (ecs.EntityID, error) {
	id := r.world.CreateEntity()
	fail := func(err error) (ecs.EntityID, error) {
		r.world.DestroyEntity(id)
		return ecs.NoEntity, fmt.Errorf("spawn shadow %s: %w", row.ID, err)
	}

	buf := interp.NewBuffer(r.cfg.BufferCapacity, r.cfg.MaxExtrapolation)
	buf.SetRecovery(r.cfg.Recovery)
	buf.Push(interp.Sample{Time: received, Position: row.Position, Rotation: row.Rotation})

	parts := []any{
		&components.Transform{Position: row.Position, Rotation: row.Rotation.Normalize()},
		buf,
		&components.Health{Current: row.Health, Max: row.MaxHealth, IsDead: row.IsDead},
		&components.Shield{Current: row.Shield, Max: row.MaxShield},
		&components.Movement{CanMove: false},
		&components.Collider{
			Shape:  components.ShapeCylinder,
			Radius: r.cfg.ShadowRadius,
			Height: r.cfg.ShadowHeight,
			Layer:  components.LayerEnemy,
			Mask:   components.ShadowMask,
		},
		&components.RemoteIdentity{RemoteID: row.ID, Kind: row.Kind, OwnerRemoteID: row.Owner},
		&components.Level{Value: row.Level},
	}
	if row.Kind.Owned() {
		parts = append(parts, &components.Scaling{})
	}
	for _, part := range parts {
		if err := r.world.AddComponent(id, part); err != nil {
			return fail(err)
		}
	}
	if row.Kind.Owned() {
		r.rescale(id, row.Owner)
	}
	if err := r.world.NotifyEntityAdded(id); err != nil {
		return fail(err)
	}

	r.ids.Bind(row.ID, id)
	r.logger.Debug("shadow spawned", log.Remote(row.ID), log.Entity(uint64(id)), log.String("kind", row.Kind.String()))
	r.publish(EventShadowSpawned, ShadowEvent{Entity: id, RemoteID: row.ID, Kind: row.Kind}, tick)
	return id, nil
}

func (r *Reconciler) update(id ecs.EntityID, row Snapshot, received time.Time) {
	if buf, ok := r.buffers.Get(id); ok {
		buf.Push(interp.Sample{Time: received, Position: row.Position, Rotation: row.Rotation})
	}
	if m, ok := r.movements.Get(id); ok {
		m.Halt()
	}
	if ident, ok := r.identities.Get(id); ok && ident.OwnerRemoteID != row.Owner {
		ident.OwnerRemoteID = row.Owner
		if ident.Kind.Owned() {
			r.rescale(id, row.Owner)
		}
	}
}

// writeScalars copies health, shield and level from the row and reports
// whether the level changed.
func (r *Reconciler) writeScalars(id ecs.EntityID, row Snapshot, tick uint64) bool {
	if h, ok := r.health.Get(id); ok {
		wasDead := h.IsDead
		h.Max, h.Current, h.IsDead = row.MaxHealth, row.Health, row.IsDead
		h.Clamp()
		if h.Current <= 0 && h.Max > 0 {
			h.IsDead = true
		}
		if h.IsDead && !wasDead {
			r.publishDeath(id, tick)
		}
	}
	if s, ok := r.shields.Get(id); ok {
		s.Max, s.Current = row.MaxShield, row.Shield
		s.Clamp()
	}
	lvl, ok := r.levels.Get(id)
	if !ok {
		return false
	}
	changed := lvl.Value != row.Level
	lvl.Value = row.Level
	return changed
}

func (r *Reconciler) rescaleOwned(owner string) {
	r.identities.Each(func(id ecs.EntityID, ident *components.RemoteIdentity) {
		if ident.Kind.Owned() && ident.OwnerRemoteID == owner {
			r.rescale(id, owner)
		}
	})
}

func (r *Reconciler) rescale(id ecs.EntityID, owner string) {
	sc, ok := r.scaling.Get(id)
	if !ok {
		return
	}
	level := 1
	if ownerID, ok := r.ids.Local(owner); ok {
		if lvl, ok := r.levels.Get(ownerID); ok && lvl.Value > 0 {
			level = lvl.Value
		}
	}
	sc.OwnerLevel = level
	sc.Factor = 1 + r.cfg.ScalingPerLevel*float64(level-1)
}

// retire marks the shadow dead and keeps it for TombstoneTicks more ticks so
// every system sees the death before it disappears.
func (r *Reconciler) retire(id ecs.EntityID, remote string, tick uint64) {
	if h, ok := r.health.Get(id); ok {
		wasDead := h.IsDead
		h.IsDead, h.Current = true, 0
		if !wasDead {
			r.publishDeath(id, tick)
		}
	}
	if m, ok := r.movements.Get(id); ok {
		m.Halt()
	}
	if b, ok := r.buffers.Get(id); ok {
		b.Hold()
	}
	r.tombstones[id] = tombstone{remote: remote, reapAt: tick + r.cfg.TombstoneTicks}
	r.logger.Debug("shadow retired", log.Remote(remote), log.Entity(uint64(id)), log.Tick(tick))

	kind := components.KindPlayer
	if ident, ok := r.identities.Get(id); ok {
		kind = ident.Kind
	}
	r.publish(EventShadowRetired, ShadowEvent{Entity: id, RemoteID: remote, Kind: kind}, tick)
}

func (r *Reconciler) reap(id ecs.EntityID, ts tombstone) {
	delete(r.tombstones, id)
	if bound, ok := r.ids.Local(ts.remote); ok && bound == id {
		r.ids.Unbind(ts.remote)
	}
	r.world.DestroyEntity(id)
}

func (r *Reconciler) snapTo(id ecs.EntityID, pos physics.Vec3, now time.Time) {
	if id == r.local {
		if tr, ok := r.transforms.Get(id); ok {
			tr.Position = pos
		}
		return
	}
	if buf, ok := r.buffers.Get(id); ok {
		rot := physics.Identity()
		if last, ok := buf.Latest(); ok {
			rot = last.Rotation
		}
		buf.Push(interp.Sample{Time: now, Position: pos, Rotation: rot})
	}
}

func (r *Reconciler) isShadow(id ecs.EntityID) bool { return r.identities.Has(id) }

func (r *Reconciler) publishDeath(id ecs.EntityID, tick uint64) {
	r.publish(combat.EventDeath, combat.Death{Entity: id}, tick)
}

func (r *Reconciler) publish(topic string, data any, tick uint64) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(bus.NewEvent(topic, "netsync", tick, data)); err != nil {
		r.logger.Warn("netsync handler failed", log.String("topic", topic), log.Error(err))
	}
}
