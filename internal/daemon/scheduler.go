package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/graphbridge/internal/metrics"
)

// Scheduler wraps gocron for the daemon's periodic tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleSnapshot schedules a periodic log line with the current phase
// counters so rollout progress is visible without scraping.
// Returns the job ID for later management.
func (s *Scheduler) ScheduleSnapshot(interval time.Duration, reg metrics.Registry) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(logSnapshot, reg),
		gocron.WithName("metrics-snapshot"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot job: %w", err)
	}

	return job.ID().String(), nil
}

// logSnapshot is called by gocron to log the phase counters.
func logSnapshot(reg metrics.Registry) {
	slog.Info("Dispatch phase counters",
		"decision_success", reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionSuccess),
		"decision_failure", reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionFailure),
		"execution_success", reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess),
		"execution_failure", reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionFailure))
}
