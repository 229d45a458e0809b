package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/status"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

type harness struct {
	sim    *Simulation
	sender *recordingSender
	logs   *observer.ObservedLogs
	now    time.Time
	local  ecs.EntityID
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, config.Default())
}

func newHarnessWith(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	h := &harness{sender: &recordingSender{}, logs: logs, now: epoch}

	c, err := NewContext(cfg, log.NewWithCore(core), bus.New(), func() time.Time { return h.now })
	require.NoError(t, err)
	c.Outbound.SetSender(h.sender)
	sched, err := NewScheduler(c)
	require.NoError(t, err)
	h.sim, err = New(c, sched, NewInbox(16))
	require.NoError(t, err)

	h.local, err = h.sim.SpawnLocalPlayer(physics.V3(0, 0, 0), epoch)
	require.NoError(t, err)
	return h
}

func (h *harness) step(t *testing.T, ms int) {
	t.Helper()
	h.now = at(ms)
	require.NoError(t, h.sim.Tick(context.Background(), h.now))
}

func (h *harness) push(t *testing.T, msg any) {
	t.Helper()
	require.NoError(t, h.sim.Inbox().TryPush(msg))
}

func shadowRow(id string, x float64) netsync.Snapshot {
	return netsync.Snapshot{
		ID: id, Position: physics.V3(x, 0, 0), Rotation: physics.Identity(),
		Health: 80, MaxHealth: 100, Shield: 10, MaxShield: 20, Level: 1,
	}
}

func (h *harness) view(remote string) (RenderEntity, bool) {
	for _, r := range h.sim.View() {
		if r.RemoteID == remote {
			return r, true
		}
	}
	return RenderEntity{}, false
}

func TestSpawnLocalPlayer(t *testing.T) {
	h := newHarness(t)

	remote, id := h.sim.Context().Reconciler.Local()
	assert.Equal(t, "local", remote)
	assert.Equal(t, h.local, id)

	hp, ok := ecs.Get[components.Health](h.sim.Context().World, h.local)
	require.True(t, ok)
	assert.Equal(t, 300.0, hp.Current)
	assert.Equal(t, components.InvulnerableSpawn, hp.InvulnerableKind)

	_, err := h.sim.SpawnLocalPlayer(physics.Vec3{}, epoch)
	assert.Error(t, err)
}

func TestEventsAreAppliedAfterSnapshotsOfTheSameTick(t *testing.T) {
	h := newHarness(t)

	h.push(t, netsync.DamageEvent{SourceID: "local", TargetID: "p2", Damage: 30, DamageType: "physical"})
	h.push(t, netsync.SnapshotBatch{Received: at(0), Entities: []netsync.Snapshot{shadowRow("p2", 5)}})
	h.step(t, 16)

	r, ok := h.view("p2")
	require.True(t, ok)
	assert.Equal(t, 60.0, r.Health)
	assert.Zero(t, r.Shield)

	numbers := h.sim.DamageNumbers()
	require.Len(t, numbers, 1)
	assert.Equal(t, 30.0, numbers[0].Amount)
	assert.Equal(t, 10.0, numbers[0].ShieldAbsorbed)
	assert.Empty(t, h.sim.DamageNumbers())
	assert.Zero(t, h.sim.Stats().Rejected)
}

func TestSpawnGuardRejectsServerHit(t *testing.T) {
	h := newHarness(t)

	h.push(t, netsync.DamageEvent{SourceID: "p2", TargetID: "local", Damage: 50})
	h.step(t, 100)

	hp, _ := ecs.Get[components.Health](h.sim.Context().World, h.local)
	assert.Equal(t, 300.0, hp.Current)
	assert.Empty(t, h.sim.DamageNumbers())
}

func TestAbsentShadowIsHiddenThenReaped(t *testing.T) {
	h := newHarness(t)

	h.push(t, netsync.SnapshotBatch{Received: at(0), Entities: []netsync.Snapshot{shadowRow("p2", 5)}})
	h.step(t, 16)
	p2, ok := h.view("p2")
	require.True(t, ok)

	h.push(t, netsync.SnapshotBatch{Received: at(16)})
	h.push(t, netsync.DamageEvent{TargetID: "p2", Damage: 10})
	h.step(t, 32)
	_, ok = h.view("p2")
	assert.False(t, ok)
	assert.True(t, h.sim.Context().World.Alive(p2.Entity))
	assert.Equal(t, uint64(1), h.sim.Stats().Rejected)
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("retired remote").Len())

	h.step(t, 48)
	assert.False(t, h.sim.Context().World.Alive(p2.Entity))
}

func TestDebuffShowsInViewAndSlowsLocalPlayer(t *testing.T) {
	h := newHarness(t)

	h.push(t, netsync.DebuffEvent{TargetID: "local", DebuffType: "slow", DurationMS: 1000})
	h.step(t, 16)

	r, ok := h.view("local")
	require.True(t, ok)
	assert.True(t, r.Local)
	require.Len(t, r.Effects, 1)
	assert.Equal(t, status.EffectSlow, r.Effects[0].Type)

	require.NoError(t, h.sim.Steer(physics.V3(10, 0, 0)))
	h.step(t, 32)
	mv, _ := ecs.Get[components.Movement](h.sim.Context().World, h.local)
	assert.InDelta(t, 3.0, mv.Velocity.Len(), 1e-9)
}

func TestPlayAnimationResetsToIdle(t *testing.T) {
	h := newHarness(t)

	h.now = at(0)
	require.NoError(t, h.sim.PlayAnimation("attack", 300*time.Millisecond))
	h.step(t, 200)
	anim, _ := ecs.Get[components.Animation](h.sim.Context().World, h.local)
	assert.Equal(t, "attack", anim.State)

	h.step(t, 300)
	assert.Equal(t, AnimationIdle, anim.State)
	assert.Equal(t, []string{"attack", AnimationIdle}, h.sender.animations())
	assert.Equal(t, uint64(1), h.sim.Stats().DeferredRan)
}

func TestAnimationResetSkippedForDestroyedPlayer(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sim.PlayAnimation("cast", 100*time.Millisecond))
	h.sim.Context().World.DestroyEntity(h.local)
	h.step(t, 200)

	assert.Equal(t, uint64(1), h.sim.Stats().DeferredSkipped)
	assert.Equal(t, []string{"cast"}, h.sender.animations())
}

func TestIntentsCarryLocalPosition(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sim.Attack("basic", physics.V3(0, 0, 2), "p2"))
	require.NoError(t, h.sim.UseAbility("frost_nova", physics.V3(3, 0, 0), ""))
	require.Len(t, h.sender.sent, 2)

	attack := h.sender.sent[0].(netsync.AttackIntent)
	assert.Equal(t, physics.V3(0, 0, 1), attack.Direction)
	assert.Equal(t, "p2", attack.TargetID)
	ability := h.sender.sent[1].(netsync.AbilityIntent)
	assert.Equal(t, "frost_nova", ability.AbilityType)
}

func TestLocalPositionIsMirroredDownstream(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sim.Steer(physics.V3(6, 0, 0)))
	h.step(t, 0)
	h.step(t, 100)

	positions := h.sender.positions()
	require.NotEmpty(t, positions)
	assert.InDelta(t, 0.6, positions[len(positions)-1].Position.X, 1e-9)
}

func TestDisconnectHoldsShadows(t *testing.T) {
	h := newHarness(t)

	h.push(t, netsync.SnapshotBatch{Received: at(0), Entities: []netsync.Snapshot{shadowRow("p2", 5)}})
	h.step(t, 16)
	require.NoError(t, h.sim.Inbox().PushDisconnected(netsync.Disconnected{Reason: "eof"}))
	h.step(t, 32)
	assert.True(t, h.sim.Context().Reconciler.Disconnected())

	_, ok := h.view("p2")
	assert.True(t, ok)

	h.step(t, 6000)
	_, ok = h.view("p2")
	assert.False(t, ok)
}

func TestHazardDamagesLocalPlayerAfterSpawnGuard(t *testing.T) {
	cfg := config.Default()
	cfg.Arena.Hazards = []config.HazardConfig{{X: 0.5, Radius: 1, Damage: 25, DamageType: "fire", Interval: time.Second}}
	h := newHarnessWith(t, cfg)
	ids, err := h.sim.SpawnHazards()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	h.step(t, 16)
	assert.Empty(t, h.sim.DamageNumbers(), "spawn guard holds")

	h.step(t, 2100)
	numbers := h.sim.DamageNumbers()
	require.Len(t, numbers, 1)
	assert.Equal(t, h.local, numbers[0].Target)
	assert.Equal(t, "fire", numbers[0].DamageType)
	sh, _ := ecs.Get[components.Shield](h.sim.Context().World, h.local)
	assert.Equal(t, 75.0, sh.Current)

	h.step(t, 2500)
	assert.Empty(t, h.sim.DamageNumbers(), "one hit per interval")
}

func TestBusHandlerFailuresAreLogged(t *testing.T) {
	h := newHarness(t)
	b := h.sim.Context().Bus
	boom := errors.New("boom")
	_, err := b.Subscribe("test.topic", func(bus.Event) error { return boom })
	require.NoError(t, err)

	require.ErrorIs(t, b.Publish(bus.NewEvent("test.topic", "test", 1, nil)), boom)
	entries := h.logs.FilterMessage("event handler failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "test.topic", entries[0].ContextMap()["topic"])

	m := h.sim.BusMetrics()
	assert.NotZero(t, m.Published)
	assert.Equal(t, uint64(1), m.Errors)

	require.NoError(t, h.sim.Close())
	require.ErrorIs(t, b.Publish(bus.NewEvent("test.topic", "test", 2, nil)), boom)
	assert.Equal(t, 1, h.logs.FilterMessage("event handler failed").Len(), "closed sessions stop reporting")
}

func TestNoLocalPlayer(t *testing.T) {
	c, err := NewContext(config.Default(), log.NewNop(), bus.New(), nil)
	require.NoError(t, err)
	sched, err := NewScheduler(c)
	require.NoError(t, err)
	s, err := New(c, sched, NewInbox(1))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Steer(physics.V3(1, 0, 0)), ErrNoLocalPlayer)
	assert.ErrorIs(t, s.Attack("basic", physics.V3(1, 0, 0), ""), ErrNoLocalPlayer)
	assert.ErrorIs(t, s.PlayAnimation("run", 0), ErrNoLocalPlayer)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Inbox().TryPush(1), ErrInboxClosed)
}
