package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marker-dock/utils"
)

func main() {
	var (
		scenPath  = flag.String("scenario", "", "Scenario YAML file (empty uses the built-in defaults)")
		iface     = flag.String("iface", "", "SocketCAN interface name (overrides the scenario)")
		mapPath   = flag.String("map", "", "Path to can_map.csv (overrides the scenario)")
		tracePath = flag.String("trace", "", "Per-tick CSV trace file (overrides the scenario)")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		seed      = flag.Uint64("seed", 0, "Exploration RNG seed (0 picks one from the clock)")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("closed_loop.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open closed_loop.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	log.Info("Exploration seed %d", *seed)

	cfg := RunnerConfig{
		ScenarioPath: *scenPath,
		Interface:    *iface,
		MapPath:      *mapPath,
		TracePath:    *tracePath,
		Seed:         *seed,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
