package sim

import (
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// busMonitor reports failing handlers per topic. While it is registered the
// bus also keeps the counters returned by Simulation.BusMetrics.
type busMonitor struct {
	logger log.Log
}

func (m *busMonitor) OnPublish(string, bus.Event) {}

func (m *busMonitor) OnDelivered(topic string, handlers int, err error) {
	if err != nil {
		m.logger.Warn("event handler failed", log.String("topic", topic), log.Int("handlers", handlers), log.Error(err))
	}
}
