//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/sim"
)

func InitializeSimulation(cfg config.Config) (*sim.Simulation, error) {
	wire.Build(SimulationSet)
	return nil, nil
}
