// Package log is the structured logger handed to every subsystem at
// construction. Fields are zap fields; the helpers below name the keys that
// show up on most simulation lines.
package log

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every entry.
	With(fields ...Field) Log
	Enabled(level Level) bool
	Sync() error
}

type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent disables output entirely.
	LevelSilent
)

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "silent", "off", "none":
		return LevelSilent
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "silent"
	}
}

type Field = zapcore.Field

func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func String(key string, val string) Field          { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Uint64(key string, val uint64) Field          { return zap.Uint64(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func NamedError(key string, err error) Field       { return zap.NamedError(key, err) }

// Entity tags a line with a local entity id.
func Entity(id uint64) Field { return zap.Uint64("entity", id) }

// Remote tags a line with an authoritative remote id.
func Remote(id string) Field { return zap.String("remote_id", id) }

// Tick tags a line with the simulation tick number.
func Tick(n uint64) Field { return zap.Uint64("tick", n) }

// System names the per-tick system a child logger belongs to.
func System(name string) Field { return zap.String("system", name) }

// Component names the subsystem a child logger belongs to.
func Component(name string) Field { return zap.String("component", name) }
