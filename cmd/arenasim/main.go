package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/systems/physics"
	"github.com/zeusync/arena/internal/injector"
	"github.com/zeusync/arena/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	offline := flag.Bool("offline", false, "run without connecting to a server")
	flag.Parse()

	if err := run(*configPath, *offline); err != nil {
		fmt.Fprintln(os.Stderr, "arenasim:", err)
		os.Exit(1)
	}
}

func run(configPath string, offline bool) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := injector.InitializeSimulation(cfg)
	if err != nil {
		return fmt.Errorf("assemble simulation: %w", err)
	}
	defer func() { _ = s.Close() }()
	logger := s.Context().Logger

	if _, err := s.SpawnLocalPlayer(physics.Vec3{}, s.Context().Clock()); err != nil {
		return err
	}
	if _, err := s.SpawnHazards(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if !offline {
		client, err := transport.Dial(gctx, injector.ProvideTransportConfig(cfg), s.Inbox(), logger)
		if err != nil {
			return err
		}
		s.Context().Outbound.SetSender(client)
		g.Go(func() error {
			// a lost feed freezes shadows; the simulation keeps running
			if err := client.Run(gctx); err != nil {
				logger.Warn("transport stopped", log.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error { return s.Run(gctx, cfg.Simulation.TickInterval()) })

	logger.Info("simulation running",
		log.Int("tick_rate", cfg.Simulation.TickRate),
		log.Bool("offline", offline),
	)
	err = g.Wait()
	events := s.BusMetrics()
	logger.Info("simulation stopped",
		log.Uint64("ticks", s.TickNumber()),
		log.Uint64("events", events.Published),
		log.Uint64("handler_errors", events.Errors),
	)
	return err
}
