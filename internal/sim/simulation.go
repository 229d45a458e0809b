package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/arena/internal/core/combat"
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/status"
	"github.com/zeusync/arena/internal/core/systems"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

const (
	// maxFrameDelta caps the step after a stall so motion does not tunnel.
	maxFrameDelta = 250 * time.Millisecond

	AnimationIdle = "idle"

	EventAnimationChanged = "sim.animation_changed"
)

// AnimationChanged is enqueued whenever the local animation state changes.
type AnimationChanged struct {
	Entity ecs.EntityID
	State  string
}

type Stats struct {
	Ticks           uint64
	Snapshots       uint64
	Events          uint64
	Rejected        uint64
	DeferredRan     uint64
	DeferredSkipped uint64
}

// RenderEntity is the read-only per-entity view handed to presentation.
type RenderEntity struct {
	Entity    ecs.EntityID
	RemoteID  string
	Kind      components.RemoteKind
	Local     bool
	Position  physics.Vec3
	Rotation  physics.Quat
	Health    float64
	MaxHealth float64
	Shield    float64
	MaxShield float64
	Dead      bool
	Effects   []status.Effect
}

// Simulation drives one session: it drains the inbox at the start of every
// tick, runs maintenance and deferred work, then the system pipeline.
type Simulation struct {
	ctx       *Context
	scheduler *systems.Scheduler
	inbox     *Inbox
	logger    log.Log

	tick    uint64
	last    time.Time
	numbers []combat.DamageNumber
	subs    []bus.Subscription
	monitor *busMonitor
	stats   Stats
}

func New(c *Context, scheduler *systems.Scheduler, inbox *Inbox) (*Simulation, error) {
	if !scheduler.Sealed() {
		scheduler.Seal()
	}
	s := &Simulation{
		ctx:       c,
		scheduler: scheduler,
		inbox:     inbox,
		logger:    c.Logger.With(log.Component("sim")),
	}
	s.monitor = &busMonitor{logger: s.logger}
	sub, err := bus.SubscribeData(c.Bus, combat.EventDamageNumber, func(_ uint64, n combat.DamageNumber) {
		s.numbers = append(s.numbers, n)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe damage numbers: %w", err)
	}
	s.subs = append(s.subs, sub)
	c.Bus.AddObserver(s.monitor)
	return s, nil
}

func (s *Simulation) Context() *Context  { return s.ctx }
func (s *Simulation) Inbox() *Inbox      { return s.inbox }
func (s *Simulation) TickNumber() uint64 { return s.tick }
func (s *Simulation) Stats() Stats       { return s.stats }

// BusMetrics returns the session bus counters.
func (s *Simulation) BusMetrics() bus.EventBusMetrics { return s.ctx.Bus.GetMetrics() }

// SpawnLocalPlayer creates the locally controlled entity at pos and binds it
// to the configured remote id.
func (s *Simulation) SpawnLocalPlayer(pos physics.Vec3, now time.Time) (ecs.EntityID, error) {
	remote, local := s.ctx.Reconciler.Local()
	if s.ctx.World.Alive(local) {
		return local, fmt.Errorf("local player %q already spawned", remote)
	}
	p := s.ctx.Config.Player
	w := s.ctx.World
	id := w.CreateEntity()

	health := &components.Health{
		Current:        p.MaxHealth,
		Max:            p.MaxHealth,
		RegenPerSecond: p.HealthRegen,
		RegenDelay:     p.RegenDelay,
	}
	health.GrantInvulnerability(components.InvulnerableSpawn, now, p.SpawnGuard)

	for _, c := range []any{
		&components.Transform{Position: pos, Rotation: physics.Identity()},
		&components.Movement{MaxSpeed: p.MaxSpeed, CanMove: true},
		health,
		&components.Shield{Current: p.MaxShield, Max: p.MaxShield, RegenRate: p.ShieldRegen, RegenDelay: p.ShieldDelay},
		&components.Collider{
			Shape:  components.ShapeCylinder,
			Radius: p.Radius,
			Height: p.Height,
			Layer:  components.LayerPlayer,
			Mask:   components.PlayerMask,
		},
		&components.Level{Value: 1},
		&components.LocalControl{RemoteID: p.RemoteID},
		&components.Animation{State: AnimationIdle, Since: now},
	} {
		if err := w.AddComponent(id, c); err != nil {
			w.DestroyEntity(id)
			return ecs.NoEntity, err
		}
	}
	if err := w.NotifyEntityAdded(id); err != nil {
		w.DestroyEntity(id)
		return ecs.NoEntity, err
	}
	s.ctx.Reconciler.BindLocal(p.RemoteID, id)
	s.logger.Info("local player spawned", log.Entity(uint64(id)), log.Remote(p.RemoteID))
	return id, nil
}

// SpawnHazards places the configured hazard zones. They are static and stay
// for the whole session.
func (s *Simulation) SpawnHazards() ([]ecs.EntityID, error) {
	w := s.ctx.World
	ids := make([]ecs.EntityID, 0, len(s.ctx.Config.Arena.Hazards))
	for i, hz := range s.ctx.Config.Arena.Hazards {
		id := w.CreateEntity()
		for _, c := range []any{
			&components.Transform{Position: physics.V3(hz.X, 0, hz.Z), Rotation: physics.Identity()},
			&components.Collider{
				Shape:  components.ShapeCylinder,
				Radius: hz.Radius,
				Height: hz.Height,
				Layer:  components.LayerHazard,
				Mask:   components.HazardMask,
				Static: true,
			},
			&components.Hazard{Damage: hz.Damage, DamageType: hz.DamageType, Interval: hz.Interval},
		} {
			if err := w.AddComponent(id, c); err != nil {
				w.DestroyEntity(id)
				return ids, fmt.Errorf("hazard %d: %w", i, err)
			}
		}
		if err := w.NotifyEntityAdded(id); err != nil {
			w.DestroyEntity(id)
			return ids, fmt.Errorf("hazard %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		s.logger.Info("hazards placed", log.Int("count", len(ids)))
	}
	return ids, nil
}

func (s *Simulation) localPlayer() (ecs.EntityID, error) {
	_, id := s.ctx.Reconciler.Local()
	if !s.ctx.World.Ready(id) {
		return ecs.NoEntity, ErrNoLocalPlayer
	}
	return id, nil
}

// Tick advances the simulation to now.
func (s *Simulation) Tick(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tick++
	s.stats.Ticks++

	var delta time.Duration
	if !s.last.IsZero() {
		delta = min(max(now.Sub(s.last), 0), maxFrameDelta)
	}
	s.last = now

	s.ctx.Reconciler.Maintain(now, s.tick)
	s.drain(now)

	ran, skipped := s.ctx.Deferred.Run(now)
	s.stats.DeferredRan += uint64(ran)
	s.stats.DeferredSkipped += uint64(skipped)

	err := s.scheduler.Tick(ctx, systems.Tick{Number: s.tick, Now: now, Delta: delta})
	return errors.Join(err, s.ctx.Bus.Flush())
}

// drain applies queued transport messages: snapshots and feed state first,
// then discrete events, so events can target shadows spawned this tick.
func (s *Simulation) drain(now time.Time) {
	msgs := s.inbox.Drain()
	if len(msgs) == 0 {
		return
	}
	events := msgs[:0:0]
	for _, msg := range msgs {
		switch m := msg.(type) {
		case netsync.SnapshotBatch:
			if m.Received.IsZero() {
				m.Received = now
			}
			s.stats.Snapshots++
			if err := s.ctx.Reconciler.ApplySnapshot(m, s.tick); err != nil {
				s.stats.Rejected++
			}
		case netsync.Disconnected:
			at := m.At
			if at.IsZero() {
				at = now
			}
			s.ctx.Reconciler.MarkDisconnected(at, m.Reason)
		default:
			events = append(events, msg)
		}
	}
	for _, msg := range events {
		s.stats.Events++
		var err error
		switch m := msg.(type) {
		case netsync.DamageEvent:
			_, err = s.ctx.Reconciler.ApplyDamage(m, now, s.tick)
		case netsync.DebuffEvent:
			_, err = s.ctx.Reconciler.ApplyDebuff(m, now, s.tick)
		default:
			err = fmt.Errorf("inbox message %T: %w", msg, netsync.ErrMalformedPayload)
			s.logger.Warn("dropping unknown inbox message", log.String("type", fmt.Sprintf("%T", msg)))
		}
		if err != nil {
			s.stats.Rejected++
		}
	}
}

// Run ticks at interval until ctx is cancelled. Tick errors are logged and
// the loop keeps going.
func (s *Simulation) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx, s.ctx.Clock()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("tick failed", log.Tick(s.tick), log.Error(err))
			}
		}
	}
}

// Steer sets the local player's desired velocity. Motion clamps it to the
// current effective speed.
func (s *Simulation) Steer(velocity physics.Vec3) error {
	id, err := s.localPlayer()
	if err != nil {
		return err
	}
	mv, ok := ecs.Get[components.Movement](s.ctx.World, id)
	if !ok {
		return ErrNoLocalPlayer
	}
	mv.Velocity = velocity
	return nil
}

// Attack sends an attack intent from the local player's position.
func (s *Simulation) Attack(attackType string, direction physics.Vec3, target string) error {
	pos, err := s.localPosition()
	if err != nil {
		return err
	}
	return s.ctx.Outbound.SendAttack(netsync.AttackIntent{
		AttackType: attackType,
		Position:   pos,
		Direction:  direction.Normalize(),
		TargetID:   target,
	})
}

// UseAbility sends an ability intent. Status effects arrive from the server.
func (s *Simulation) UseAbility(ability string, direction physics.Vec3, target string) error {
	pos, err := s.localPosition()
	if err != nil {
		return err
	}
	return s.ctx.Outbound.SendAbility(netsync.AbilityIntent{
		AbilityType: ability,
		Position:    pos,
		Direction:   direction.Normalize(),
		TargetID:    target,
	})
}

func (s *Simulation) localPosition() (physics.Vec3, error) {
	id, err := s.localPlayer()
	if err != nil {
		return physics.Vec3{}, err
	}
	tr, ok := ecs.Get[components.Transform](s.ctx.World, id)
	if !ok {
		return physics.Vec3{}, ErrNoLocalPlayer
	}
	return tr.Position, nil
}

// PlayAnimation switches the local animation state and, when hold is
// positive, schedules the return to idle. The reset is dropped if the player
// is gone by then or another state took over.
func (s *Simulation) PlayAnimation(state string, hold time.Duration) error {
	id, err := s.localPlayer()
	if err != nil {
		return err
	}
	now := s.ctx.Clock()
	if err := s.setAnimation(id, state, now); err != nil {
		return err
	}
	if hold <= 0 {
		return nil
	}
	s.ctx.Deferred.After(id, now, hold, func(at time.Time) {
		anim, ok := ecs.Get[components.Animation](s.ctx.World, id)
		if !ok || anim.State != state {
			return
		}
		if err := s.setAnimation(id, AnimationIdle, at); err != nil {
			s.logger.Warn("animation reset failed", log.Entity(uint64(id)), log.Error(err))
		}
	})
	return nil
}

func (s *Simulation) setAnimation(id ecs.EntityID, state string, now time.Time) error {
	anim, ok := ecs.Get[components.Animation](s.ctx.World, id)
	if !ok {
		return ErrNoLocalPlayer
	}
	if anim.State != state {
		anim.State, anim.Since = state, now
		s.ctx.Bus.Enqueue(bus.NewEvent(EventAnimationChanged, "sim", s.tick, AnimationChanged{Entity: id, State: state}))
	}
	_, err := s.ctx.Outbound.SendAnimation(state, now)
	return err
}

// DamageNumbers returns and clears the damage numbers produced since the
// last call.
func (s *Simulation) DamageNumbers() []combat.DamageNumber {
	out := s.numbers
	s.numbers = nil
	return out
}

// View snapshots every visible entity for presentation. Retired shadows are
// left out.
func (s *Simulation) View() []RenderEntity {
	w := s.ctx.World
	now := s.last
	var out []RenderEntity
	for _, id := range w.Query(ecs.TypeOf[components.Transform](w)) {
		if s.ctx.Reconciler.Retired(id) {
			continue
		}
		tr, _ := ecs.Get[components.Transform](w, id)
		r := RenderEntity{Entity: id, Position: tr.Position, Rotation: tr.Rotation}
		if ident, ok := ecs.Get[components.RemoteIdentity](w, id); ok {
			r.RemoteID, r.Kind = ident.RemoteID, ident.Kind
		}
		if lc, ok := ecs.Get[components.LocalControl](w, id); ok {
			r.RemoteID, r.Local = lc.RemoteID, true
		}
		if h, ok := ecs.Get[components.Health](w, id); ok {
			r.Health, r.MaxHealth, r.Dead = h.Current, h.Max, h.IsDead
		}
		if sh, ok := ecs.Get[components.Shield](w, id); ok {
			r.Shield, r.MaxShield = sh.Current, sh.Max
		}
		r.Effects = s.ctx.Status.Active(id, now)
		out = append(out, r)
	}
	return out
}

// Close cancels bus subscriptions and rejects further inbox pushes.
func (s *Simulation) Close() error {
	s.inbox.Close()
	s.ctx.Bus.RemoveObserver(s.monitor)
	var errs []error
	for _, sub := range s.subs {
		errs = append(errs, s.ctx.Bus.Unsubscribe(sub))
	}
	s.subs = nil
	return errors.Join(errs...)
}
