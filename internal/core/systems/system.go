package systems

import (
	"time"
)

// System is one step of the per-tick pipeline. Systems receive everything they
// need at construction; Update must not block.
type System interface {
	Name() string
	Phase() Phase
	Update(tick Tick) error
}

// Tick describes the frame being simulated.
type Tick struct {
	Number uint64
	Now    time.Time
	Delta  time.Duration
}

// Seconds is Delta in seconds.
func (t Tick) Seconds() float64 { return t.Delta.Seconds() }

// Phase fixes where a system runs inside a tick. Damage applied in Combat is
// visible to Interpolation and Downstream systems of the same tick.
type Phase uint8

const (
	PhasePhysics Phase = iota
	PhaseCollision
	PhaseCombat
	PhaseStatus
	PhaseInterpolation
	// PhaseDownstream hosts render, projectile and outbound systems.
	PhaseDownstream
)

func (p Phase) String() string {
	switch p {
	case PhasePhysics:
		return "physics"
	case PhaseCollision:
		return "collision"
	case PhaseCombat:
		return "combat"
	case PhaseStatus:
		return "status"
	case PhaseInterpolation:
		return "interpolation"
	case PhaseDownstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastTick             uint64
}

func (m *Metrics) record(tick uint64, took time.Duration, err error) {
	m.ExecutionCount++
	m.TotalExecutionTime += took
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
	if took > m.MaxExecutionTime {
		m.MaxExecutionTime = took
	}
	m.LastTick = tick
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
}
