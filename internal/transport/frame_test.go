package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

func TestFrameCarriesTypedBody(t *testing.T) {
	crit := true
	hint := physics.V3(1, 0, 2)
	cases := []struct {
		kind Kind
		msg  any
	}{
		{KindSnapshot, netsync.SnapshotBatch{Sequence: 9, Entities: []netsync.Snapshot{{ID: "p2", Health: 50, MaxHealth: 100, Level: 3}}}},
		{KindDamage, netsync.DamageEvent{SourceID: "p2", TargetID: "local", Damage: 12, IsCritical: &crit}},
		{KindDebuff, netsync.DebuffEvent{TargetID: "local", DebuffType: "freeze", DurationMS: 800, PositionHint: &hint}},
		{KindAttack, netsync.AttackIntent{AttackType: "basic", Direction: physics.V3(0, 0, 1)}},
		{KindAnimation, netsync.AnimationUpdate{State: "run"}},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			data, err := Encode("s-1", 4, tc.msg)
			require.NoError(t, err)

			f, msg, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, f.Kind)
			assert.Equal(t, "s-1", f.Session)
			assert.Equal(t, uint64(4), f.Sequence)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestEncodeRejectsUnknownIntent(t *testing.T) {
	_, err := Encode("", 1, struct{}{})
	assert.ErrorIs(t, err, ErrUnknownIntent)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	data, err := msgpack.Marshal(&Frame{Kind: 99, Body: msgpack.RawMessage{0xc0}})
	require.NoError(t, err)
	_, _, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, _, err = Decode([]byte{0xc1})
	assert.Error(t, err)
}
