package netsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/arena/internal/core/combat"
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/interp"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/status"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

type harness struct {
	world    *ecs.World
	bus      bus.EventBus
	rec      *Reconciler
	registry *status.Registry
	logs     *observer.ObservedLogs
	deaths   []combat.Death
	spawned  []ShadowEvent
	retired  []ShadowEvent
	local    ecs.EntityID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	logger := log.NewWithCore(core)

	w := ecs.NewWorld()
	components.Register(w)
	b := bus.New()
	engine := combat.NewEngine(w, combat.DefaultConfig(), b, logger)
	registry := status.NewRegistry(w, nil, nil, b, logger)

	h := &harness{world: w, bus: b, registry: registry, logs: logs}
	h.rec = NewReconciler(w, NewIDMap(), engine, registry, b, DefaultConfig(), logger)

	_, _ = bus.SubscribeData(b, combat.EventDeath, func(_ uint64, d combat.Death) { h.deaths = append(h.deaths, d) })
	_, _ = bus.SubscribeData(b, EventShadowSpawned, func(_ uint64, e ShadowEvent) { h.spawned = append(h.spawned, e) })
	_, _ = bus.SubscribeData(b, EventShadowRetired, func(_ uint64, e ShadowEvent) { h.retired = append(h.retired, e) })

	h.local = w.CreateEntity()
	for _, c := range []any{
		&components.Transform{Rotation: physics.Identity()},
		&components.Health{Current: 100, Max: 100},
		&components.Shield{Max: 50},
		&components.Movement{MaxSpeed: 6, CanMove: true},
		&components.Level{Value: 1},
		&components.LocalControl{RemoteID: "me"},
	} {
		require.NoError(t, w.AddComponent(h.local, c))
	}
	require.NoError(t, w.NotifyEntityAdded(h.local))
	h.rec.BindLocal("me", h.local)
	return h
}

func row(id string, x float64) Snapshot {
	return Snapshot{
		ID: id, Position: physics.V3(x, 0, 0), Rotation: physics.Identity(),
		Health: 80, MaxHealth: 100, Shield: 10, MaxShield: 20, Level: 1,
	}
}

func batch(ms int, rows ...Snapshot) SnapshotBatch {
	return SnapshotBatch{Received: at(ms), Entities: rows}
}

func TestSpawnShadow(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 3)), 1))

	id, ok := h.rec.IDs().Local("p2")
	require.True(t, ok)
	assert.True(t, h.world.Ready(id), "shadows are announced once fully built")

	mv, ok := ecs.Get[components.Movement](h.world, id)
	require.True(t, ok)
	assert.False(t, mv.CanMove)

	col, ok := ecs.Get[components.Collider](h.world, id)
	require.True(t, ok)
	assert.Equal(t, components.LayerEnemy, col.Layer)
	assert.Equal(t, components.LayerEnvironment, col.Mask)

	hp, _ := ecs.Get[components.Health](h.world, id)
	assert.Equal(t, 80.0, hp.Current)
	buf, ok := ecs.Get[interp.Buffer](h.world, id)
	require.True(t, ok)
	assert.Equal(t, 1, buf.Len())

	require.Len(t, h.spawned, 1)
	assert.Equal(t, "p2", h.spawned[0].RemoteID)
}

func TestUpdateFeedsBufferAndScalars(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0)), 1))
	id, _ := h.rec.IDs().Local("p2")

	mv, _ := ecs.Get[components.Movement](h.world, id)
	mv.Velocity = physics.V3(4, 0, 0)
	tr, _ := ecs.Get[components.Transform](h.world, id)

	next := row("p2", 5)
	next.Health, next.Shield = 40, 0
	require.NoError(t, h.rec.ApplySnapshot(batch(100, next), 2))

	buf, _ := ecs.Get[interp.Buffer](h.world, id)
	assert.Equal(t, 2, buf.Len())
	assert.Zero(t, tr.Position.X, "positions go through the buffer, not the transform")
	assert.True(t, mv.Velocity.IsZero())

	hp, _ := ecs.Get[components.Health](h.world, id)
	sh, _ := ecs.Get[components.Shield](h.world, id)
	assert.Equal(t, 40.0, hp.Current)
	assert.Zero(t, sh.Current)
}

func TestAbsentShadowIsTombstonedThenReaped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0), row("p3", 1)), 1))
	id, _ := h.rec.IDs().Local("p3")

	h.rec.Maintain(at(16), 2)
	require.NoError(t, h.rec.ApplySnapshot(batch(100, row("p2", 0)), 2))

	hp, _ := ecs.Get[components.Health](h.world, id)
	require.NotNil(t, hp)
	assert.True(t, hp.IsDead)
	assert.Zero(t, hp.Current)
	assert.True(t, h.world.Alive(id), "kept for one tick")
	require.Len(t, h.deaths, 1)
	assert.Equal(t, id, h.deaths[0].Entity)

	h.rec.Maintain(at(116), 3)
	assert.False(t, h.world.Alive(id))
	_, mapped := h.rec.IDs().Local("p3")
	assert.False(t, mapped)
	assert.Len(t, h.retired, 1)
	assert.Len(t, h.deaths, 1, "retirement fires death once")
}

func TestPartialBatchDoesNotRetire(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0), row("p3", 1)), 1))

	partial := batch(100, row("p2", 1))
	partial.Partial = true
	require.NoError(t, h.rec.ApplySnapshot(partial, 2))

	id, ok := h.rec.IDs().Local("p3")
	require.True(t, ok)
	assert.False(t, h.rec.Retired(id))
}

func TestLocalRowsNeverSpawnShadows(t *testing.T) {
	h := newHarness(t)
	me := row("me", 9)
	me.Health, me.Shield, me.Level = 55, 25, 3
	me.MaxShield = 50

	count := h.world.Count()
	require.NoError(t, h.rec.ApplySnapshot(batch(0, me), 1))
	assert.Equal(t, count, h.world.Count())

	hp, _ := ecs.Get[components.Health](h.world, h.local)
	sh, _ := ecs.Get[components.Shield](h.world, h.local)
	lvl, _ := ecs.Get[components.Level](h.world, h.local)
	tr, _ := ecs.Get[components.Transform](h.world, h.local)
	assert.Equal(t, 55.0, hp.Current)
	assert.Equal(t, 25.0, sh.Current)
	assert.Equal(t, 3, lvl.Value)
	assert.Zero(t, tr.Position.X, "the local transform belongs to local simulation")
	assert.False(t, ecs.Has[interp.Buffer](h.world, h.local))
}

func TestBindLocalRetiresShadowOfLocalID(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("me2", 0)), 1))
	shadow, _ := h.rec.IDs().Local("me2")

	other := h.world.CreateEntity()
	require.NoError(t, h.world.AddComponent(other, &components.Health{Current: 100, Max: 100}))
	require.NoError(t, h.world.NotifyEntityAdded(other))
	h.rec.BindLocal("me2", other)

	assert.True(t, h.rec.Retired(shadow))
	id, _ := h.rec.IDs().Local("me2")
	assert.Equal(t, other, id)
}

func TestEventsForUnknownIDsAreDropped(t *testing.T) {
	h := newHarness(t)
	count := h.world.Count()

	_, err := h.rec.ApplyDamage(DamageEvent{SourceID: "me", TargetID: "ghost", Damage: 10}, at(0), 1)
	assert.ErrorIs(t, err, ErrUnknownRemote)
	_, err = h.rec.ApplyDebuff(DebuffEvent{TargetID: "ghost", DebuffType: "slow", DurationMS: 1000}, at(0), 1)
	assert.ErrorIs(t, err, ErrUnknownRemote)

	assert.Equal(t, count, h.world.Count(), "no phantom entities")
	assert.Equal(t, 2, h.logs.FilterMessageSnippet("unknown remote").Len())
}

func TestEventsForRetiredIDsAreDropped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0)), 1))
	require.NoError(t, h.rec.ApplySnapshot(batch(100), 2))

	_, err := h.rec.ApplyDamage(DamageEvent{TargetID: "p2", Damage: 10}, at(100), 2)
	assert.ErrorIs(t, err, ErrRetiredRemote)
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("retired remote").Len())
}

func TestApplyDamage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0)), 1))
	id, _ := h.rec.IDs().Local("p2")
	crit := false

	res, err := h.rec.ApplyDamage(DamageEvent{SourceID: "me", TargetID: "p2", Damage: 30, IsCritical: &crit}, at(10), 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.ShieldAbsorbed)
	assert.Equal(t, 20.0, res.HealthLoss)

	hp, _ := ecs.Get[components.Health](h.world, id)
	assert.Equal(t, 60.0, hp.Current)

	_, err = h.rec.ApplyDamage(DamageEvent{TargetID: "p2", Damage: 5, Source: "laser"}, at(10), 1)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	_, err = h.rec.ApplyDamage(DamageEvent{TargetID: "p2", Damage: -5}, at(10), 1)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, 60.0, hp.Current)
}

func TestApplyDebuff(t *testing.T) {
	h := newHarness(t)

	e, err := h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", DebuffType: "freeze", DurationMS: 1000}, at(0), 1)
	require.NoError(t, err)
	assert.Equal(t, status.EffectFreeze, e.Type)
	mv, _ := ecs.Get[components.Movement](h.world, h.local)
	assert.Zero(t, mv.EffectiveMaxSpeed(at(500)))

	e, err = h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", DebuffType: "freeze", DurationMS: 3000, Extend: true}, at(500), 2)
	require.NoError(t, err)
	assert.Equal(t, at(3500), e.End())

	hint := physics.V3(4, 0, 2)
	_, err = h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", DebuffType: "freeze", DurationMS: 100, PositionHint: &hint}, at(600), 3)
	require.NoError(t, err)
	tr, _ := ecs.Get[components.Transform](h.world, h.local)
	assert.Equal(t, hint, tr.Position)

	_, err = h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", DebuffType: "hex", DurationMS: 100}, at(0), 1)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	_, err = h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", DebuffType: "slow", DurationMS: -1}, at(0), 1)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestApplyDebuffByAbility(t *testing.T) {
	h := newHarness(t)

	e, err := h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", Ability: "frost_nova"}, at(0), 1)
	require.NoError(t, err)
	assert.Equal(t, status.EffectFreeze, e.Type)
	assert.True(t, e.Duration > 0)

	e, err = h.rec.ApplyDebuff(DebuffEvent{TargetID: "me", Ability: "basic_swing"}, at(0), 1)
	require.NoError(t, err)
	assert.Zero(t, e.Type)
	assert.Equal(t, 1, h.registry.Len())
}

func TestOwnedScalingFollowsOwnerLevel(t *testing.T) {
	h := newHarness(t)
	owner := row("p2", 0)
	tower := row("t1", 5)
	tower.Kind, tower.Owner = components.KindTower, "p2"

	require.NoError(t, h.rec.ApplySnapshot(batch(0, owner, tower), 1))
	towerID, _ := h.rec.IDs().Local("t1")
	sc, ok := ecs.Get[components.Scaling](h.world, towerID)
	require.True(t, ok)
	assert.Equal(t, 1, sc.OwnerLevel)
	assert.InDelta(t, 1.0, sc.Factor, 1e-9)

	owner.Level = 5
	require.NoError(t, h.rec.ApplySnapshot(batch(100, owner, tower), 2))
	assert.Equal(t, 5, sc.OwnerLevel)
	assert.InDelta(t, 1.4, sc.Factor, 1e-9)

	// the local player owning a summon
	summon := row("s1", 1)
	summon.Kind, summon.Owner = components.KindSummon, "me"
	me := row("me", 0)
	me.Level = 3
	require.NoError(t, h.rec.ApplySnapshot(batch(200, owner, tower, summon), 3))
	require.NoError(t, h.rec.ApplySnapshot(batch(300, me, owner, tower, summon), 4))
	summonID, _ := h.rec.IDs().Local("s1")
	ssc, _ := ecs.Get[components.Scaling](h.world, summonID)
	assert.Equal(t, 3, ssc.OwnerLevel)
}

func TestOwnedRowBeforeItsOwner(t *testing.T) {
	h := newHarness(t)
	summon := row("s1", 1)
	summon.Kind, summon.Owner = components.KindSummon, "p2"
	owner := row("p2", 0)
	owner.Level = 5

	require.NoError(t, h.rec.ApplySnapshot(batch(0, summon, owner), 1))
	summonID, _ := h.rec.IDs().Local("s1")
	sc, ok := ecs.Get[components.Scaling](h.world, summonID)
	require.True(t, ok)
	assert.Equal(t, 5, sc.OwnerLevel)
	assert.InDelta(t, 1.4, sc.Factor, 1e-9)

	require.NoError(t, h.rec.ApplySnapshot(batch(100, summon, owner), 2))
	assert.Equal(t, 5, sc.OwnerLevel, "an unchanged owner level keeps the scaling")
	assert.InDelta(t, 1.4, sc.Factor, 1e-9)
}

func TestDisconnectFreezesThenRetires(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0)), 1))
	id, _ := h.rec.IDs().Local("p2")

	h.rec.MarkDisconnected(at(50), "read: connection reset")
	assert.True(t, h.rec.Disconnected())
	buf, _ := ecs.Get[interp.Buffer](h.world, id)
	assert.True(t, buf.Held())
	assert.Equal(t, 1, h.logs.FilterMessage("snapshot feed lost").Len())

	h.rec.Maintain(at(4000), 2)
	assert.False(t, h.rec.Retired(id), "brief outages do not pop entities")

	h.rec.Maintain(at(5000), 3)
	assert.True(t, h.rec.Retired(id))
	h.rec.Maintain(at(5016), 4)
	assert.False(t, h.world.Alive(id))
}

func TestMalformedRowIsSkipped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rec.ApplySnapshot(batch(0, row("p2", 0)), 1))
	id, _ := h.rec.IDs().Local("p2")

	bad := row("p2", 0)
	bad.Health = -4
	err := h.rec.ApplySnapshot(batch(100, bad), 2)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.False(t, h.rec.Retired(id), "a malformed row still counts as present")

	hp, _ := ecs.Get[components.Health](h.world, id)
	assert.Equal(t, 80.0, hp.Current)
}

func TestIDMap(t *testing.T) {
	m := NewIDMap()
	m.Bind("a", 1)
	m.Bind("b", 2)
	m.Bind("a", 3)

	id, ok := m.Local("a")
	require.True(t, ok)
	assert.Equal(t, ecs.EntityID(3), id)
	_, ok = m.Remote(1)
	assert.False(t, ok, "rebinding drops the stale reverse entry")

	m.Touch("b", at(5))
	seen, ok := m.LastSeen("b")
	require.True(t, ok)
	assert.Equal(t, at(5), seen)

	assert.Equal(t, []string{"a", "b"}, m.Remotes())
	assert.True(t, m.Unbind("b"))
	assert.False(t, m.Unbind("b"))
	assert.Equal(t, 1, m.Len())
}
