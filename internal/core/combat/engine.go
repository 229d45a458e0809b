// Package combat resolves hits against health and shields through a fixed
// pipeline: invulnerability gate, shield absorption, health reduction, death
// detection. Status effects are applied separately by the status package.
package combat

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// Hit is one damage request.
type Hit struct {
	Attacker   ecs.EntityID
	Target     ecs.EntityID
	Raw        float64
	DamageType string
	Source     DamageSource
	// Critical carries a pre-rolled crit; nil means roll locally.
	Critical *bool
	// BypassInvulnerability asks the policy table for a bypass.
	BypassInvulnerability bool
	// Authoritative marks server-reported damage. Locally originated hits on
	// remote entities are only predicted: reported, never written.
	Authoritative bool
}

func (h Hit) validate() error {
	if h.Target.IsZero() {
		return fmt.Errorf("hit without target: %w", ErrMalformedPayload)
	}
	if math.IsNaN(h.Raw) || math.IsInf(h.Raw, 0) || h.Raw < 0 {
		return fmt.Errorf("hit damage %v: %w", h.Raw, ErrMalformedPayload)
	}
	return nil
}

// RejectReason says why a hit changed nothing.
type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectNoHealth
	RejectDead
	RejectInvulnerable
)

func (r RejectReason) String() string {
	switch r {
	case RejectNoHealth:
		return "no_health"
	case RejectDead:
		return "dead"
	case RejectInvulnerable:
		return "invulnerable"
	default:
		return "none"
	}
}

// Result reports what a hit did.
//
// HealthLoss is the damage left after the shield, max(0, damage-absorbed).
// Overkill is the part of it that found no health left. Applied is what was
// actually removed from both bars and is what damage numbers show.
type Result struct {
	Damage         float64
	ShieldAbsorbed float64
	HealthLoss     float64
	Overkill       float64
	Applied        float64
	Critical       bool
	Killed         bool
	Predicted      bool
	Rejected       RejectReason
}

type Config struct {
	CritChance     float64
	CritMultiplier float64
	Policy         BypassPolicy
}

func DefaultConfig() Config {
	return Config{
		CritMultiplier: 1.5,
		Policy:         DefaultBypassPolicy(150 * time.Millisecond),
	}
}

// Engine owns every write to Health and Shield outside authoritative
// snapshots.
type Engine struct {
	cfg    Config
	bus    bus.EventBus
	logger log.Log

	health  *ecs.Store[components.Health]
	shields *ecs.Store[components.Shield]
	remotes *ecs.Store[components.RemoteIdentity]
}

func NewEngine(world *ecs.World, cfg Config, eventBus bus.EventBus, logger log.Log) *Engine {
	if cfg.CritMultiplier <= 0 {
		cfg.CritMultiplier = 1
	}
	if cfg.Policy.rules == nil {
		cfg.Policy = DefaultConfig().Policy
	}
	return &Engine{
		cfg:     cfg,
		bus:     eventBus,
		logger:  logger.With(log.Component("combat")),
		health:  ecs.StoreOf[components.Health](world),
		shields: ecs.StoreOf[components.Shield](world),
		remotes: ecs.StoreOf[components.RemoteIdentity](world),
	}
}

func (e *Engine) Policy() BypassPolicy { return e.cfg.Policy }

// Resolve runs the pipeline for hit at time now. Malformed hits return
// ErrMalformedPayload without touching state; a missing Health component or a
// dead target is a rejection, not an error.
//
// The shield absorbs min(damage, current) whether or not it is inside its
// post-hit regen delay. The delay only pauses regeneration (see RegenSystem);
// it never lets a hit skip a shield that still has charge.
func (e *Engine) Resolve(hit Hit, now time.Time, tick uint64) (Result, error) {
	if err := hit.validate(); err != nil {
		return Result{}, err
	}
	health, ok := e.health.Get(hit.Target)
	if !ok {
		return Result{Rejected: RejectNoHealth}, nil
	}
	if health.IsDead {
		return Result{Rejected: RejectDead}, nil
	}

	res := Result{Damage: hit.Raw, Critical: e.critical(hit, tick)}
	if res.Critical {
		res.Damage *= e.cfg.CritMultiplier
	}

	if remaining := health.InvulnerableRemaining(now); remaining > 0 {
		if !hit.BypassInvulnerability || !e.cfg.Policy.Permits(hit.Source, health.InvulnerableKind, remaining) {
			res.Rejected = RejectInvulnerable
			return res, nil
		}
		e.logger.Debug("invulnerability bypassed",
			log.Entity(uint64(hit.Target)),
			log.String("source", hit.Source.String()),
			log.Duration("remaining", remaining),
		)
	}

	// shadows are written by the network layer only
	res.Predicted = !hit.Authoritative && e.remotes.Has(hit.Target)

	hp := *health
	shield, hasShield := e.shields.Get(hit.Target)
	var sh components.Shield
	if hasShield {
		sh = *shield
	}

	remaining := res.Damage
	if hasShield && sh.Current > 0 && remaining > 0 {
		res.ShieldAbsorbed = math.Min(remaining, sh.Current)
		sh.Current -= res.ShieldAbsorbed
		sh.LastHitAt = now
		sh.Clamp()
		remaining -= res.ShieldAbsorbed
	}

	if remaining > 0 {
		res.HealthLoss = remaining
		taken := math.Min(remaining, hp.Current)
		res.Overkill = remaining - taken
		hp.Current -= taken
		hp.LastDamageAt = now
		hp.Clamp()
	}
	res.Applied = res.ShieldAbsorbed + res.HealthLoss - res.Overkill

	if hp.Current <= 0 && !hp.IsDead {
		hp.IsDead = true
		res.Killed = true
	}

	if !res.Predicted {
		*health = hp
		if hasShield {
			*shield = sh
		}
	}

	e.publish(hit, res, tick)
	return res, nil
}

func (e *Engine) publish(hit Hit, res Result, tick uint64) {
	if e.bus == nil {
		return
	}
	if res.Applied > 0 {
		number := DamageNumber{
			Attacker:       hit.Attacker,
			Target:         hit.Target,
			Amount:         res.Applied,
			ShieldAbsorbed: res.ShieldAbsorbed,
			Critical:       res.Critical,
			DamageType:     hit.DamageType,
			Predicted:      res.Predicted,
		}
		if err := e.bus.Publish(bus.NewEvent(EventDamageNumber, "combat", tick, number)); err != nil {
			e.logger.Warn("damage number handler failed", log.Error(err))
		}
	}
	if res.Killed && !res.Predicted {
		e.logger.Debug("entity died", log.Entity(uint64(hit.Target)), log.Tick(tick))
		if err := e.bus.Publish(bus.NewEvent(EventDeath, "combat", tick, Death{Entity: hit.Target, Killer: hit.Attacker})); err != nil {
			e.logger.Warn("death handler failed", log.Error(err))
		}
	}
}

// critical resolves the crit flag: a pre-rolled value wins, otherwise the roll
// is a hash of attacker, target and tick so every replay agrees.
func (e *Engine) critical(hit Hit, tick uint64) bool {
	if hit.Critical != nil {
		return *hit.Critical
	}
	if e.cfg.CritChance <= 0 {
		return false
	}
	return Roll(hit.Attacker, hit.Target, tick) < e.cfg.CritChance
}

// Roll maps (attacker, target, tick) onto [0, 1).
func Roll(attacker, target ecs.EntityID, tick uint64) float64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(attacker))
	binary.LittleEndian.PutUint64(buf[8:], uint64(target))
	binary.LittleEndian.PutUint64(buf[16:], tick)
	return float64(xxhash.Sum64(buf[:])>>11) / (1 << 53)
}
