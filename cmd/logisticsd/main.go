package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/reliefops/logistics-agent/internal/agent"
	"github.com/reliefops/logistics-agent/internal/config"
	"github.com/reliefops/logistics-agent/internal/connector"
	"github.com/reliefops/logistics-agent/internal/events"
	"github.com/reliefops/logistics-agent/internal/lock"
	"github.com/reliefops/logistics-agent/internal/notify"
	"github.com/reliefops/logistics-agent/internal/routing"
	"github.com/reliefops/logistics-agent/internal/setup"
	"github.com/reliefops/logistics-agent/internal/status"
	"github.com/reliefops/logistics-agent/internal/stream"
	"github.com/reliefops/logistics-agent/internal/uds"
)

const version = "1.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "run":
		runAgent(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "verify-journal":
		runVerifyJournal(os.Args[2:])
	case "version":
		fmt.Printf("logisticsd %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// parseConfigFlag handles the flags every subcommand shares: --config
// and, where allowed, --json.
func parseConfigFlag(args []string, usage string, allowJSON bool) (configPath string, jsonOutput bool) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--json":
			if !allowJSON {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], usage)
				os.Exit(1)
			}
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], usage)
			os.Exit(1)
		}
	}
	return configPath, jsonOutput
}

func runInit(args []string) {
	dir := "."
	if len(args) > 0 {
		if len(args) > 1 || args[0] == "--help" {
			fmt.Fprintln(os.Stderr, "usage: logisticsd init [dir]")
			os.Exit(1)
		}
		dir = args[0]
	}

	cfgPath, err := setup.Run(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initialized %s\n", cfgPath)
	fmt.Println("Fill in the endpoint credentials, then start the agent with: logisticsd run --config " + cfgPath)
}

func runAgent(args []string) {
	configPath, _ := parseConfigFlag(args, "usage: logisticsd run [--config <path>]", false)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger()

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create state dir: %v\n", err)
		os.Exit(1)
	}

	pidfile := lock.New(cfg.PidfilePath())
	if err := pidfile.Acquire(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer pidfile.Release()

	journal, err := events.OpenJournal(cfg.JournalDir(), events.DefaultMaxJournalSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	bus := events.NewBus(256)
	detach := journal.Attach(bus)

	dispatcher := notify.FromConfig(cfg, logger)
	var opsQueue *notify.QueueChannel
	if cfg.Queue.Enabled {
		opsQueue, err = notify.DialQueue(cfg.Queue.URL, cfg.Queue.Queue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect ops queue: %v\n", err)
			os.Exit(1)
		}
		dispatcher.Register(opsQueue, notify.SeverityWarning)
	}

	inventory := connector.NewInventoryClient(cfg, logger)
	transport := connector.NewTransportClient(cfg, logger)
	weather := connector.NewWeatherClient(cfg, logger)

	opts := agent.Options{
		Config:    cfg,
		Logger:    logger,
		Inventory: inventory,
		Transport: transport,
		Weather:   weather,
		Routing: routing.Oracle{
			Alternatives: transport,
			Plans:        routing.NewStaticPlanner(),
		},
		Distances: routing.NewStaticDistances(cfg.Distances),
		Notifier:  dispatcher,
		Bus:       bus,
	}

	var producer *stream.Producer
	if cfg.Stream.Enabled {
		producer = stream.NewProducer(cfg.Stream.Broker, cfg.Stream.Topic, logger)
		opts.Stream = producer
	}

	ag, err := agent.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create agent: %v\n", err)
		os.Exit(1)
	}

	srv := uds.NewServer(cfg.SocketPath(), logger)
	ag.RegisterHandlers(srv)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start status socket: %v\n", err)
		os.Exit(1)
	}

	var watcher *config.Watcher
	if configPath != "" {
		watcher, err = config.Watch(configPath, logger, ag.ApplyConfig)
		if err != nil {
			logger.WithError(err).Warn("config watching disabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// After the first signal, a second one terminates immediately.
		<-ctx.Done()
		stop()
	}()

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			srv.Stop()
			if watcher != nil {
				watcher.Close()
			}
			if producer != nil {
				producer.Close()
			}
			if opsQueue != nil {
				opsQueue.Close()
			}
			detach()
			journal.Close()
			bus.Close()
		})
	}
	defer shutdown()

	if err := ag.Run(ctx); err != nil {
		shutdown()
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		os.Exit(1)
	}
	shutdown()
	logger.Info("agent stopped")
}

func runStatus(args []string) {
	configPath, jsonOutput := parseConfigFlag(args, "usage: logisticsd status [--json] [--config <path>]", true)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := status.Run(cfg.SocketPath(), cfg.PidfilePath(), jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

func runValidate(args []string) {
	configPath, _ := parseConfigFlag(args, "usage: logisticsd validate [--config <path>]", false)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("configuration OK (agent %q, state dir %s)\n", cfg.AgentName, cfg.StateDir)
}

func runVerifyJournal(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: logisticsd verify-journal <file>")
		os.Exit(1)
	}

	total, valid, err := events.VerifyJournal(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify journal: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d entries, %d valid\n", args[0], total, valid)
	if valid != total {
		fmt.Fprintf(os.Stderr, "%d corrupt entries\n", total-valid)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `logisticsd %s — Humanitarian logistics coordination agent

Usage: logisticsd <command> [options]

Agent:
  init [dir]                         Scaffold a deployment directory
  run [--config <path>]              Run the coordination agent
  status [--json] [--config <path>]  Show a running agent's status

Utilities:
  validate [--config <path>]         Check the configuration and exit
  verify-journal <file>              Verify decision journal checksums
  version                            Show version
  help                               Show this help

`, version)
}
