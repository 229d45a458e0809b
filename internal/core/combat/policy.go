package combat

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeusync/arena/internal/core/components"
)

// DamageSource classifies where a hit comes from. The invulnerability bypass
// policy is keyed by it.
type DamageSource uint8

const (
	SourceBasic DamageSource = iota
	SourceAbility
	// SourceChannel is a high frequency multi-tick ability.
	SourceChannel
	SourceDoT
	SourcePVPProjectile
	SourceEnvironment
)

var sourceNames = [...]string{
	SourceBasic:         "basic",
	SourceAbility:       "ability",
	SourceChannel:       "channel",
	SourceDoT:           "dot",
	SourcePVPProjectile: "pvp_projectile",
	SourceEnvironment:   "environment",
}

func (s DamageSource) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return "unknown"
}

func ParseDamageSource(s string) (DamageSource, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SourceBasic, nil
	}
	for i, name := range sourceNames {
		if name == s {
			return DamageSource(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownSource)
}

// BypassRule says whether hits from a source may ignore invulnerability and
// the longest remaining window they may do it in.
type BypassRule struct {
	Allowed      bool
	MaxRemaining time.Duration
}

// BypassPolicy is the reviewable table deciding when a hit that asks for an
// invulnerability bypass gets one. Kinds listed as absolute are never
// bypassed, whatever the source.
type BypassPolicy struct {
	rules    map[DamageSource]BypassRule
	absolute map[components.InvulnerabilityKind]bool
}

// DefaultBypassPolicy lets channels, DoT ticks and PVP projectiles through
// the last window of an invulnerability period. Basic attacks, one-shot
// abilities and environment damage never bypass; blocks are absolute.
func DefaultBypassPolicy(window time.Duration) BypassPolicy {
	return BypassPolicy{
		rules: map[DamageSource]BypassRule{
			SourceBasic:         {},
			SourceAbility:       {},
			SourceChannel:       {Allowed: true, MaxRemaining: window},
			SourceDoT:           {Allowed: true, MaxRemaining: window},
			SourcePVPProjectile: {Allowed: true, MaxRemaining: window},
			SourceEnvironment:   {},
		},
		absolute: map[components.InvulnerabilityKind]bool{
			components.InvulnerableBlock: true,
		},
	}
}

// With returns a copy of the policy with the rule for source replaced.
func (p BypassPolicy) With(source DamageSource, rule BypassRule) BypassPolicy {
	out := BypassPolicy{
		rules:    make(map[DamageSource]BypassRule, len(p.rules)+1),
		absolute: make(map[components.InvulnerabilityKind]bool, len(p.absolute)),
	}
	for k, v := range p.rules {
		out.rules[k] = v
	}
	for k, v := range p.absolute {
		out.absolute[k] = v
	}
	out.rules[source] = rule
	return out
}

func (p BypassPolicy) Rule(source DamageSource) BypassRule { return p.rules[source] }

// Permits reports whether a bypass request from source may pierce an
// invulnerability window of the given kind with remaining time left.
func (p BypassPolicy) Permits(source DamageSource, kind components.InvulnerabilityKind, remaining time.Duration) bool {
	if p.absolute[kind] {
		return false
	}
	rule, ok := p.rules[source]
	if !ok || !rule.Allowed {
		return false
	}
	return remaining <= rule.MaxRemaining
}
