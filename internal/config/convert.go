package config

import (
	"errors"
	"fmt"
	"maps"

	"github.com/zeusync/arena/internal/core/combat"
	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/status"
)

func (c Config) CombatConfig() combat.Config {
	return combat.Config{
		CritChance:     c.Combat.CritChance,
		CritMultiplier: c.Combat.CritMultiplier,
		Policy:         combat.DefaultBypassPolicy(c.Combat.BypassWindow),
	}
}

func (c Config) StatusConfig() status.Config {
	return status.Config{SweepInterval: c.Status.SweepInterval, StaleAfter: c.Status.StaleAfter}
}

// StatusDefinitions applies the debuff overrides to the built-in definitions.
func (c Config) StatusDefinitions() (map[status.EffectType]status.Definition, error) {
	defs := maps.Clone(status.DefaultDefinitions())
	for name, o := range c.Status.Debuffs {
		typ, err := status.ParseEffectType(name)
		if err != nil {
			return nil, fmt.Errorf("status.debuffs: %w", errors.Join(ErrInvalidConfig, err))
		}
		d := defs[typ]
		if o.Duration > 0 {
			d.DefaultDuration = o.Duration
		}
		if o.SpeedMultiplier > 0 {
			d.SpeedMultiplier = o.SpeedMultiplier
		}
		if o.TickInterval > 0 {
			d.TickInterval = o.TickInterval
		}
		if o.DamagePerTick > 0 {
			d.DamagePerTick = o.DamagePerTick
		}
		defs[typ] = d
	}
	return defs, nil
}

// AbilityEffects merges the configured ability table over the built-in one.
func (c Config) AbilityEffects() (status.AbilityEffects, error) {
	table := status.DefaultAbilityEffects()
	for ability, a := range c.Status.Abilities {
		typ, err := status.ParseEffectType(a.Effect)
		if err != nil {
			return nil, fmt.Errorf("status.abilities.%s: %w", ability, errors.Join(ErrInvalidConfig, err))
		}
		table[ability] = status.AbilityEffect{Effect: typ, Duration: a.Duration}
	}
	return table, nil
}

func (c Config) NetsyncConfig() netsync.Config {
	cfg := netsync.DefaultConfig()
	cfg.BufferCapacity = c.Interpolation.BufferCapacity
	cfg.MaxExtrapolation = c.Interpolation.MaxExtrapolation
	cfg.Recovery = c.Interpolation.Delay
	cfg.TombstoneTicks = c.Network.TombstoneTicks
	cfg.DisconnectTimeout = c.Network.DisconnectTimeout
	cfg.ScalingPerLevel = c.Network.ScalingPerLevel
	cfg.ShadowRadius = c.Player.Radius
	cfg.ShadowHeight = c.Player.Height
	return cfg
}
