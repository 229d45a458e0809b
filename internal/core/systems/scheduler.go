package systems

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeusync/arena/internal/core/observability/log"
)

// Scheduler runs every registered system exactly once per tick in phase
// order, keeping registration order inside a phase. The order is frozen by
// Seal; nothing can be skipped, added or reordered afterwards.
type Scheduler struct {
	systems []System
	names   map[string]int
	metrics []Metrics
	sealed  bool
	logger  log.Log
}

func NewScheduler(logger log.Log) *Scheduler {
	return &Scheduler{
		names:  make(map[string]int),
		logger: logger.With(log.Component("scheduler")),
	}
}

func (s *Scheduler) Register(sys System) error {
	if sys == nil {
		return ErrNilSystem
	}
	if s.sealed {
		return fmt.Errorf("register %s: %w", sys.Name(), ErrSchedulerSealed)
	}
	if _, exists := s.names[sys.Name()]; exists {
		return fmt.Errorf("register %s: %w", sys.Name(), ErrDuplicateSystem)
	}
	s.names[sys.Name()] = len(s.systems)
	s.systems = append(s.systems, sys)
	return nil
}

// Seal freezes the execution order.
func (s *Scheduler) Seal() {
	if s.sealed {
		return
	}
	sort.SliceStable(s.systems, func(i, j int) bool {
		return s.systems[i].Phase() < s.systems[j].Phase()
	})
	for i, sys := range s.systems {
		s.names[sys.Name()] = i
	}
	s.metrics = make([]Metrics, len(s.systems))
	s.sealed = true
	s.logger.Debug("execution order sealed", log.Strings("order", s.Order()))
}

func (s *Scheduler) Sealed() bool { return s.sealed }

// Tick runs the pipeline once. A failing system does not stop the ones after
// it; all errors are joined into the return value.
func (s *Scheduler) Tick(ctx context.Context, tick Tick) error {
	if !s.sealed {
		return ErrSchedulerNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var all error
	for i, sys := range s.systems {
		start := time.Now()
		err := sys.Update(tick)
		s.metrics[i].record(tick.Number, time.Since(start), err)
		if err != nil {
			s.logger.Warn("system update failed",
				log.System(sys.Name()),
				log.Tick(tick.Number),
				log.Error(err),
			)
			all = errors.Join(all, fmt.Errorf("%s: %w", sys.Name(), err))
		}
	}
	return all
}

// Order returns system names in execution order.
func (s *Scheduler) Order() []string {
	out := make([]string, len(s.systems))
	for i, sys := range s.systems {
		out[i] = sys.Name()
	}
	return out
}

func (s *Scheduler) System(name string) (System, bool) {
	i, ok := s.names[name]
	if !ok {
		return nil, false
	}
	return s.systems[i], true
}

func (s *Scheduler) Metrics(name string) (Metrics, error) {
	i, ok := s.names[name]
	if !ok || !s.sealed {
		return Metrics{}, fmt.Errorf("metrics %s: %w", name, ErrSystemNotFound)
	}
	return s.metrics[i], nil
}
