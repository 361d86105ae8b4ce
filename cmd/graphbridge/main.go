package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/graphbridge/internal/analyzer"
	"git.home.luguber.info/inful/graphbridge/internal/backend"
	"git.home.luguber.info/inful/graphbridge/internal/config"
	"git.home.luguber.info/inful/graphbridge/internal/daemon"
	"git.home.luguber.info/inful/graphbridge/internal/dispatch"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
	"git.home.luguber.info/inful/graphbridge/internal/metrics"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Compile struct {
		Graph        string `arg:"" help:"Path to the graph source file"`
		Device       string `short:"d" help:"Target device type" default:"XLA_TPU_JIT"`
		UseTupleArgs bool   `help:"Pass arguments as a single tuple"`
	} `cmd:"" help:"Dispatch a single compilation request and print the outcome"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct{} `cmd:"" help:"Run the dispatch host with HTTP and metrics endpoints"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "compile <graph>":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runCompile(cfg, CLI.Compile.Graph, CLI.Compile.Device, CLI.Compile.UseTupleArgs); err != nil {
			slog.Error("Compile failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	case "daemon":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

// runCompile dispatches one request through a standalone dispatcher and prints
// the artifact and the phase counters it moved.
func runCompile(cfg *config.Config, graphPath, device string, useTupleArgs bool) error {
	source, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("failed to read graph source: %w", err)
	}

	req, err := graph.NewCompilationRequest(string(source), nil, graph.Metadata{
		UseTupleArgs: useTupleArgs,
		DeviceType:   device,
	})
	if err != nil {
		return err
	}

	reg := metrics.NewMemoryRegistry()
	d := newDispatcher(cfg, reg)

	artifact, err := d.Compile(context.Background(), req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	slog.Info("Dispatch complete",
		"decision_success", reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionSuccess),
		"execution_success", reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess))
	return nil
}

// newDispatcher wires a one-shot dispatcher from configuration, without the
// audit store or telemetry publisher the daemon carries.
func newDispatcher(cfg *config.Config, reg metrics.Registry) *dispatch.Dispatcher {
	rolloutAnalyzer := analyzer.NewRolloutAnalyzer(
		cfg.Rollout.AnalysisEnabled, cfg.Rollout.AnalyzerMode())

	legalizeRules := backend.NewRuleSet(backend.LegalizationBackendName, cfg.Backends.Legalization.Supported)
	legacyRules := backend.NewRuleSet(backend.LegacyBackendName, cfg.Backends.Legacy.Supported)
	legalizer := backend.NewLegalizationBackend(legalizeRules.Survey, legalizeRules.Compile, reg)
	legacy := backend.NewLegacyBackend(legacyRules.Compile)

	return dispatch.New(rolloutAnalyzer, legalizer, legacy, dispatch.WithMetrics(reg))
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	return config.Init(configPath, force)
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
