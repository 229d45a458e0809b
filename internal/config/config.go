// Package config loads the simulation tunables from YAML on top of defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Simulation    SimulationConfig    `yaml:"simulation"`
	Interpolation InterpolationConfig `yaml:"interpolation"`
	Collision     CollisionConfig     `yaml:"collision"`
	Combat        CombatConfig        `yaml:"combat"`
	Status        StatusConfig        `yaml:"status"`
	Network       NetworkConfig       `yaml:"network"`
	Outbound      OutboundConfig      `yaml:"outbound"`
	Transport     TransportConfig     `yaml:"transport"`
	Player        PlayerConfig        `yaml:"player"`
	Arena         ArenaConfig         `yaml:"arena"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SimulationConfig struct {
	TickRate  int `yaml:"tick_rate"`
	InboxSize int `yaml:"inbox_size"`
}

// TickInterval is the frame period derived from TickRate.
func (s SimulationConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

type InterpolationConfig struct {
	Delay            time.Duration `yaml:"delay"`
	MaxExtrapolation time.Duration `yaml:"max_extrapolation"`
	BufferCapacity   int           `yaml:"buffer_capacity"`
}

type CollisionConfig struct {
	CellSize float64 `yaml:"cell_size"`
}

type CombatConfig struct {
	CritChance     float64       `yaml:"crit_chance"`
	CritMultiplier float64       `yaml:"crit_multiplier"`
	BypassWindow   time.Duration `yaml:"bypass_window"`
}

type StatusConfig struct {
	SweepInterval time.Duration            `yaml:"sweep_interval"`
	StaleAfter    time.Duration            `yaml:"stale_after"`
	Debuffs       map[string]DebuffConfig  `yaml:"debuffs"`
	Abilities     map[string]AbilityConfig `yaml:"abilities"`
}

// DebuffConfig overrides the defaults of one effect type. Zero fields keep
// the built-in value.
type DebuffConfig struct {
	Duration        time.Duration `yaml:"duration"`
	SpeedMultiplier float64       `yaml:"speed_multiplier"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	DamagePerTick   float64       `yaml:"damage_per_tick"`
}

type AbilityConfig struct {
	Effect   string        `yaml:"effect"`
	Duration time.Duration `yaml:"duration"`
}

type NetworkConfig struct {
	TombstoneTicks    uint64        `yaml:"tombstone_ticks"`
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout"`
	ScalingPerLevel   float64       `yaml:"scaling_per_level"`
}

type OutboundConfig struct {
	AnimationRate float64 `yaml:"animation_rate"`
	PositionRate  float64 `yaml:"position_rate"`
}

type TransportConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	SendQueue        int           `yaml:"send_queue"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
}

type PlayerConfig struct {
	RemoteID    string        `yaml:"remote_id"`
	MaxHealth   float64       `yaml:"max_health"`
	HealthRegen float64       `yaml:"health_regen"`
	RegenDelay  time.Duration `yaml:"regen_delay"`
	MaxShield   float64       `yaml:"max_shield"`
	ShieldRegen float64       `yaml:"shield_regen"`
	ShieldDelay time.Duration `yaml:"shield_delay"`
	MaxSpeed    float64       `yaml:"max_speed"`
	Radius      float64       `yaml:"radius"`
	Height      float64       `yaml:"height"`
	SpawnGuard  time.Duration `yaml:"spawn_guard"`
}

type ArenaConfig struct {
	Hazards []HazardConfig `yaml:"hazards"`
}

// HazardConfig places one damaging cylinder on the arena floor.
type HazardConfig struct {
	X          float64       `yaml:"x"`
	Z          float64       `yaml:"z"`
	Radius     float64       `yaml:"radius"`
	Height     float64       `yaml:"height"`
	Damage     float64       `yaml:"damage"`
	DamageType string        `yaml:"damage_type"`
	Interval   time.Duration `yaml:"interval"`
}

func Default() Config {
	return Config{
		Log:        LogConfig{Level: "info", Format: "json"},
		Simulation: SimulationConfig{TickRate: 60, InboxSize: 256},
		Interpolation: InterpolationConfig{
			Delay:            100 * time.Millisecond,
			MaxExtrapolation: 250 * time.Millisecond,
			BufferCapacity:   32,
		},
		Collision: CollisionConfig{CellSize: 4},
		Combat:    CombatConfig{CritMultiplier: 1.5, BypassWindow: 150 * time.Millisecond},
		Status:    StatusConfig{SweepInterval: time.Second, StaleAfter: 2 * time.Second},
		Network: NetworkConfig{
			TombstoneTicks:    1,
			DisconnectTimeout: 5 * time.Second,
			ScalingPerLevel:   0.1,
		},
		Outbound: OutboundConfig{AnimationRate: 10, PositionRate: 20},
		Transport: TransportConfig{
			URL:              "ws://127.0.0.1:8080/arena",
			HandshakeTimeout: 5 * time.Second,
			WriteTimeout:     2 * time.Second,
			ReadTimeout:      10 * time.Second,
			SendQueue:        64,
			MaxMessageSize:   1 << 20,
		},
		Player: PlayerConfig{
			RemoteID:    "local",
			MaxHealth:   300,
			HealthRegen: 2,
			RegenDelay:  5 * time.Second,
			MaxShield:   100,
			ShieldRegen: 10,
			ShieldDelay: 3 * time.Second,
			MaxSpeed:    6,
			Radius:      0.5,
			Height:      1.8,
			SpawnGuard:  2 * time.Second,
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", errors.Join(ErrInvalidConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Simulation.TickRate > 0 && c.Simulation.TickRate <= 1000, "simulation.tick_rate %d out of range", c.Simulation.TickRate)
	check(c.Simulation.InboxSize > 0, "simulation.inbox_size must be positive")
	check(c.Interpolation.Delay >= 0, "interpolation.delay must not be negative")
	check(c.Interpolation.MaxExtrapolation >= 0, "interpolation.max_extrapolation must not be negative")
	check(c.Interpolation.BufferCapacity >= 2, "interpolation.buffer_capacity must be at least 2")
	check(positive(c.Collision.CellSize), "collision.cell_size must be positive")
	check(c.Combat.CritChance >= 0 && c.Combat.CritChance <= 1, "combat.crit_chance must be within [0, 1]")
	check(c.Combat.CritMultiplier >= 1, "combat.crit_multiplier must be at least 1")
	check(c.Combat.BypassWindow >= 0, "combat.bypass_window must not be negative")
	check(c.Status.SweepInterval > 0, "status.sweep_interval must be positive")
	check(c.Status.StaleAfter >= 0, "status.stale_after must not be negative")
	for name, d := range c.Status.Debuffs {
		check(d.Duration >= 0 && d.TickInterval >= 0, "status.debuffs.%s durations must not be negative", name)
		check(d.SpeedMultiplier >= 0 && d.SpeedMultiplier <= 1, "status.debuffs.%s.speed_multiplier must be within [0, 1]", name)
		check(d.DamagePerTick >= 0, "status.debuffs.%s.damage_per_tick must not be negative", name)
	}
	check(c.Network.TombstoneTicks >= 1, "network.tombstone_ticks must be at least 1")
	check(c.Network.DisconnectTimeout > 0, "network.disconnect_timeout must be positive")
	check(c.Outbound.AnimationRate > 0, "outbound.animation_rate must be positive")
	check(c.Outbound.PositionRate > 0, "outbound.position_rate must be positive")
	if u, err := url.Parse(c.Transport.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("transport.url %q must be a ws:// or wss:// url", c.Transport.URL))
	}
	check(c.Transport.SendQueue > 0, "transport.send_queue must be positive")
	check(c.Player.RemoteID != "", "player.remote_id must be set")
	check(positive(c.Player.MaxHealth), "player.max_health must be positive")
	check(c.Player.MaxShield >= 0, "player.max_shield must not be negative")
	for i, h := range c.Arena.Hazards {
		check(positive(h.Radius) && h.Height >= 0, "arena.hazards[%d] needs a positive radius", i)
		check(h.Damage >= 0 && !math.IsInf(h.Damage, 0) && !math.IsNaN(h.Damage), "arena.hazards[%d].damage must not be negative", i)
		check(h.Interval > 0, "arena.hazards[%d].interval must be positive", i)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }
