// Package injector assembles a simulation from configuration.
package injector

import (
	"time"

	"github.com/google/wire"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/sim"
	"github.com/zeusync/arena/internal/transport"
)

var SimulationSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideBus,
	ProvideClock,
	sim.NewContext,
	sim.NewScheduler,
	ProvideInbox,
	sim.New,
)

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.NewWithFormat(log.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}

func ProvideBus() bus.EventBus { return bus.New() }

func ProvideClock() sim.Clock { return time.Now }

func ProvideInbox(cfg config.Config) *sim.Inbox {
	return sim.NewInbox(cfg.Simulation.InboxSize)
}

func ProvideTransportConfig(cfg config.Config) transport.Config {
	t := cfg.Transport
	return transport.Config{
		URL:              t.URL,
		HandshakeTimeout: t.HandshakeTimeout,
		WriteTimeout:     t.WriteTimeout,
		ReadTimeout:      t.ReadTimeout,
		SendQueue:        t.SendQueue,
		MaxMessageSize:   t.MaxMessageSize,
	}
}
