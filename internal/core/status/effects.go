// Package status is the single registry of timed effects. Every effect is
// keyed by (target, type); re-application refreshes instead of stacking a
// second timer, and expiry is re-evaluated every tick.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeusync/arena/internal/core/ecs"
)

type EffectType uint8

const (
	EffectFreeze EffectType = iota + 1
	EffectSlow
	EffectCorrupted
	EffectBurning
	EffectVenom
)

var effectNames = map[EffectType]string{
	EffectFreeze:    "freeze",
	EffectSlow:      "slow",
	EffectCorrupted: "corrupted",
	EffectBurning:   "burning",
	EffectVenom:     "venom",
}

func (t EffectType) String() string {
	if name, ok := effectNames[t]; ok {
		return name
	}
	return "unknown"
}

func ParseEffectType(s string) (EffectType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range effectNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownEffect)
}

// Definition is the static description of an effect type.
type Definition struct {
	Type            EffectType
	DefaultDuration time.Duration
	// SpeedMultiplier applies to movement effects: the slow factor, or the
	// floor a corrupted target recovers from.
	SpeedMultiplier float64
	TickInterval    time.Duration
	DamagePerTick   float64
	DamageType      string
	Stackable       bool
	MaxStacks       int
}

func (d Definition) Movement() bool {
	return d.Type == EffectFreeze || d.Type == EffectSlow || d.Type == EffectCorrupted
}

func (d Definition) Ticks() bool { return d.TickInterval > 0 && d.DamagePerTick > 0 }

func DefaultDefinitions() map[EffectType]Definition {
	return map[EffectType]Definition{
		EffectFreeze:    {Type: EffectFreeze, DefaultDuration: 2 * time.Second},
		EffectSlow:      {Type: EffectSlow, DefaultDuration: 3 * time.Second, SpeedMultiplier: 0.5},
		EffectCorrupted: {Type: EffectCorrupted, DefaultDuration: 4 * time.Second, SpeedMultiplier: 0.3},
		EffectBurning: {
			Type: EffectBurning, DefaultDuration: 3 * time.Second,
			TickInterval: 500 * time.Millisecond, DamagePerTick: 5, DamageType: "fire",
		},
		EffectVenom: {
			Type: EffectVenom, DefaultDuration: 5 * time.Second,
			TickInterval: time.Second, DamagePerTick: 3, DamageType: "poison",
			Stackable: true, MaxStacks: 5,
		},
	}
}

// Effect is one active record.
type Effect struct {
	Target     ecs.EntityID
	Type       EffectType
	Source     ecs.EntityID
	Start      time.Time
	Duration   time.Duration
	StackCount int
	LastUpdate time.Time
	NextTick   time.Time
}

func (e *Effect) End() time.Time { return e.Start.Add(e.Duration) }

func (e *Effect) Expired(now time.Time) bool { return !now.Before(e.End()) }

func (e *Effect) Remaining(now time.Time) time.Duration {
	if e.Expired(now) {
		return 0
	}
	return e.End().Sub(now)
}

// AbilityEffect binds an ability to the debuff it applies. Abilities absent
// from the table apply no status at all.
type AbilityEffect struct {
	Effect   EffectType
	Duration time.Duration
}

// AbilityEffects is the ability id → effect table.
type AbilityEffects map[string]AbilityEffect

func DefaultAbilityEffects() AbilityEffects {
	return AbilityEffects{
		"frost_nova":   {Effect: EffectFreeze},
		"ice_shard":    {Effect: EffectSlow},
		"void_bolt":    {Effect: EffectCorrupted},
		"fireball":     {Effect: EffectBurning},
		"venom_strike": {Effect: EffectVenom},
	}
}
