// Package daemon runs the long-lived graphbridge host: the HTTP compile and
// metrics endpoints, the rollout config watcher, and the periodic metrics
// snapshot job.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/graphbridge/internal/analyzer"
	"git.home.luguber.info/inful/graphbridge/internal/audit"
	"git.home.luguber.info/inful/graphbridge/internal/backend"
	"git.home.luguber.info/inful/graphbridge/internal/config"
	"git.home.luguber.info/inful/graphbridge/internal/dispatch"
	"git.home.luguber.info/inful/graphbridge/internal/metrics"
	"git.home.luguber.info/inful/graphbridge/internal/telemetry"
)

// Daemon wires the dispatcher and its collaborators for continuous operation.
type Daemon struct {
	mu  sync.RWMutex
	cfg *config.Config

	analyzer   *analyzer.RolloutAnalyzer
	dispatcher *dispatch.Dispatcher
	reg        *metrics.PromRegistry
	store      audit.Store
	publisher  telemetry.Publisher

	server    *Server
	watcher   *ConfigWatcher
	scheduler *Scheduler
}

// New assembles a daemon from configuration. configPath may be empty to
// disable config file watching.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	reg := metrics.NewPromRegistry(prom.NewRegistry())

	rolloutAnalyzer := analyzer.NewRolloutAnalyzer(
		cfg.Rollout.AnalysisEnabled, cfg.Rollout.AnalyzerMode())

	legalizeRules := backend.NewRuleSet(backend.LegalizationBackendName, cfg.Backends.Legalization.Supported)
	legacyRules := backend.NewRuleSet(backend.LegacyBackendName, cfg.Backends.Legacy.Supported)
	legalizer := backend.NewLegalizationBackend(legalizeRules.Survey, legalizeRules.Compile, reg)
	legacy := backend.NewLegacyBackend(legacyRules.Compile)

	opts := []dispatch.Option{dispatch.WithMetrics(reg)}

	var store audit.Store
	if cfg.Audit.Enabled {
		s, err := audit.NewSQLiteStore(cfg.Audit.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		store = s
		opts = append(opts, dispatch.WithAuditStore(store))
	}

	var publisher telemetry.Publisher
	if cfg.Telemetry.Enabled {
		p, err := telemetry.NewNATSPublisher(cfg.Telemetry.NATSURL, cfg.Telemetry.Subject)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, fmt.Errorf("failed to create telemetry publisher: %w", err)
		}
		publisher = p
		opts = append(opts, dispatch.WithPublisher(publisher))
	}

	d := &Daemon{
		cfg:        cfg,
		analyzer:   rolloutAnalyzer,
		dispatcher: dispatch.New(rolloutAnalyzer, legalizer, legacy, opts...),
		reg:        reg,
		store:      store,
		publisher:  publisher,
	}

	d.server = NewServer(cfg.Metrics.Listen, d.dispatcher, reg)

	scheduler, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	d.scheduler = scheduler

	if configPath != "" {
		watcher, err := NewConfigWatcher(configPath, d)
		if err != nil {
			return nil, err
		}
		d.watcher = watcher
	}

	return d, nil
}

// Dispatcher exposes the dispatcher for one-shot hosting.
func (d *Daemon) Dispatcher() *dispatch.Dispatcher { return d.dispatcher }

// Start launches the HTTP server, watcher, and snapshot job.
func (d *Daemon) Start(ctx context.Context) error {
	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	if _, err := d.scheduler.ScheduleSnapshot(d.cfg.SnapshotEvery(), d.reg); err != nil {
		return err
	}
	d.scheduler.Start(ctx)

	slog.Info("Daemon started", "listen", d.cfg.Metrics.Listen)
	return d.server.ListenAndServe(ctx)
}

// Stop shuts everything down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Stopping daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			slog.Error("Error stopping config watcher", "error", err)
		}
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		slog.Error("Error stopping scheduler", "error", err)
	}
	if err := d.server.Shutdown(ctx); err != nil {
		slog.Error("Error stopping http server", "error", err)
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			slog.Error("Error closing telemetry publisher", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Error("Error closing audit store", "error", err)
		}
	}
	return nil
}

// GetConfig returns the currently applied configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig applies a new configuration. Only the rollout section takes
// effect at runtime; backend tables and listen addresses require a restart.
func (d *Daemon) ReloadConfig(_ context.Context, newCfg *config.Config) error {
	d.mu.Lock()
	old := d.cfg
	d.cfg = newCfg
	d.mu.Unlock()

	d.analyzer.SetAvailable(newCfg.Rollout.AnalysisEnabled)
	d.analyzer.SetMode(newCfg.Rollout.AnalyzerMode())

	if old.Metrics.Listen != newCfg.Metrics.Listen {
		slog.Warn("Metrics listen address changed - restart required for full effect")
	}

	slog.Info("Rollout configuration applied",
		"analysis_enabled", newCfg.Rollout.AnalysisEnabled,
		"mode", newCfg.Rollout.Mode)
	return nil
}
