package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

type recordingSender struct {
	sent []any
	err  error
}

func (r *recordingSender) Send(intent any) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, intent)
	return nil
}

func (r *recordingSender) animations() []string {
	var out []string
	for _, m := range r.sent {
		if a, ok := m.(netsync.AnimationUpdate); ok {
			out = append(out, a.State)
		}
	}
	return out
}

func (r *recordingSender) positions() []netsync.PositionUpdate {
	var out []netsync.PositionUpdate
	for _, m := range r.sent {
		if p, ok := m.(netsync.PositionUpdate); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestOutboundAnimationIsRateLimited(t *testing.T) {
	s := &recordingSender{}
	o := NewOutbound(s, 10, 20, log.NewNop())
	t0 := time.Unix(100, 0)
	ms := func(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

	sent, err := o.SendAnimation("run", ms(0))
	require.NoError(t, err)
	assert.True(t, sent)

	sent, _ = o.SendAnimation("attack", ms(20))
	assert.False(t, sent)
	sent, _ = o.SendAnimation("cast", ms(40))
	assert.False(t, sent)

	require.NoError(t, o.Flush(ms(60)))
	assert.Equal(t, []string{"run"}, s.animations())

	require.NoError(t, o.Flush(ms(100)))
	assert.Equal(t, []string{"run", "cast"}, s.animations())

	sent, _ = o.SendAnimation("cast", ms(400))
	assert.False(t, sent, "unchanged state is not resent")
	assert.Equal(t, uint64(2), o.Stats().Throttled)
}

func TestOutboundPositionOnlyWhenChanged(t *testing.T) {
	s := &recordingSender{}
	o := NewOutbound(s, 10, 20, log.NewNop())
	t0 := time.Unix(100, 0)
	u := netsync.PositionUpdate{Position: physics.V3(1, 0, 0), Rotation: physics.Identity()}

	sent, err := o.SendPosition(u, t0)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, _ = o.SendPosition(u, t0.Add(time.Second))
	assert.False(t, sent)

	u.Position = physics.V3(2, 0, 0)
	sent, _ = o.SendPosition(u, t0.Add(time.Second+10*time.Millisecond))
	assert.True(t, sent)

	u.Position = physics.V3(3, 0, 0)
	sent, _ = o.SendPosition(u, t0.Add(time.Second+20*time.Millisecond))
	assert.False(t, sent)
	require.NoError(t, o.Flush(t0.Add(time.Second+60*time.Millisecond)))
	require.Len(t, s.positions(), 3)
	assert.Equal(t, physics.V3(3, 0, 0), s.positions()[2].Position)
}

func TestOutboundImmediateIntents(t *testing.T) {
	s := &recordingSender{}
	o := NewOutbound(s, 10, 20, log.NewNop())

	require.NoError(t, o.SendAttack(netsync.AttackIntent{AttackType: "basic"}))
	require.NoError(t, o.SendAttack(netsync.AttackIntent{AttackType: "basic"}))
	require.NoError(t, o.SendAbility(netsync.AbilityIntent{AbilityType: "frost_nova"}))
	assert.Len(t, s.sent, 3)
	assert.Equal(t, uint64(3), o.Stats().Sent)

	s.err = errors.New("socket closed")
	assert.ErrorIs(t, o.SendAttack(netsync.AttackIntent{}), s.err)
	assert.Equal(t, uint64(1), o.Stats().Failed)

	o.SetSender(nil)
	require.NoError(t, o.SendAbility(netsync.AbilityIntent{}))
	assert.Equal(t, uint64(1), o.Stats().Dropped)
}
