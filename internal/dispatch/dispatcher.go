// Package dispatch routes compilation requests between the legalization and
// legacy backends and keeps the rollout accounting for both phases.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/graphbridge/internal/analyzer"
	"git.home.luguber.info/inful/graphbridge/internal/audit"
	"git.home.luguber.info/inful/graphbridge/internal/backend"
	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
	"git.home.luguber.info/inful/graphbridge/internal/logfields"
	"git.home.luguber.info/inful/graphbridge/internal/metrics"
	"git.home.luguber.info/inful/graphbridge/internal/telemetry"
)

// DecisionRecord is the transient per-request routing record. It is persisted
// to the audit store and published as telemetry when those are configured.
type DecisionRecord struct {
	RequestID  string                   `json:"request_id"`
	Mode       analyzer.Mode            `json:"mode"`
	Executor   string                   `json:"executor"`
	DecisionOK bool                     `json:"decision_ok"`
	Flagged    []backend.ConstructIssue `json:"flagged,omitempty"`
}

// Dispatcher orchestrates one compilation request end to end: eligibility
// analysis, the bookkeeping decision phase, executor selection, and the
// execution phase. It holds no per-request mutable state; concurrent requests
// share only the metrics registry.
type Dispatcher struct {
	analyzer  analyzer.Analyzer
	legalizer backend.Legalizer
	legacy    backend.Backend
	reg       metrics.Registry
	store     audit.Store
	publisher telemetry.Publisher
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics injects the counter registry (default NoopRegistry).
func WithMetrics(reg metrics.Registry) Option {
	return func(d *Dispatcher) { d.reg = reg }
}

// WithAuditStore enables persistence of dispatch records.
func WithAuditStore(store audit.Store) Option {
	return func(d *Dispatcher) { d.store = store }
}

// WithPublisher enables telemetry events per dispatched request.
func WithPublisher(p telemetry.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// New creates a Dispatcher over the given analyzer and backends.
func New(a analyzer.Analyzer, legalizer backend.Legalizer, legacy backend.Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		analyzer:  a,
		legalizer: legalizer,
		legacy:    legacy,
		reg:       metrics.NoopRegistry{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compile dispatches one request and returns the selected executor's outcome
// verbatim. It fails only by returning an error; each phase is attempted
// exactly once, with no retries.
//
// When the analyzer reports that graph analysis is unavailable, the sentinel
// is propagated immediately and nothing else happens: no backend invocation,
// no metric increment, no audit record, no telemetry event.
func (d *Dispatcher) Compile(ctx context.Context, req *graph.CompilationRequest) (*graph.Artifact, error) {
	mode, err := d.analyzer.Analyze(req)
	if err != nil {
		return nil, err
	}

	rec := DecisionRecord{RequestID: req.ID(), Mode: mode}

	// Decision phase: always survey via the legalization backend, purely for
	// bookkeeping. Completion counts as decision success even when constructs
	// are flagged as unsupported; only an internal fault is a failure, and a
	// failure here never suppresses the execution phase.
	report, surveyErr := d.legalizer.Survey(ctx, req)
	if surveyErr != nil {
		d.reg.Inc(metrics.MetricCompilationStatus, metrics.StatusDecisionFailure)
		slog.Warn("Decision phase failed",
			logfields.RequestID(req.ID()),
			logfields.Mode(string(mode)),
			logfields.Error(surveyErr))
	} else {
		d.reg.Inc(metrics.MetricCompilationStatus, metrics.StatusDecisionSuccess)
		for _, issue := range report.Flagged {
			category := issue.Category
			if category == "" {
				category = berrors.CategoryUnknown
			}
			d.reg.Inc(metrics.MetricLegalizeFlagged, issue.Construct, category)
			slog.Debug("Construct flagged during decision phase",
				logfields.RequestID(req.ID()),
				logfields.Construct(issue.Construct),
				logfields.Category(category))
		}
		rec.DecisionOK = true
		rec.Flagged = report.Flagged
	}

	executor := d.executorFor(mode)
	rec.Executor = executor.Name()
	d.recordDecision(ctx, &rec)

	// Execution phase: exactly one invocation of the selected backend. The
	// outcome is returned verbatim, never fabricated or upgraded.
	start := time.Now()
	artifact, execErr := executor.Compile(ctx, req)
	if execErr != nil {
		d.reg.Inc(metrics.MetricCompilationStatus, metrics.StatusExecutionFailure)
	} else {
		d.reg.Inc(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess)
	}

	d.recordOutcome(ctx, &rec, execErr, time.Since(start))
	d.publish(ctx, req, &rec, execErr)

	return artifact, execErr
}

// executorFor selects the execution backend for the analyzer's mode. New
// modes slot in here without touching the phase accounting above.
func (d *Dispatcher) executorFor(mode analyzer.Mode) backend.Backend {
	switch mode {
	case analyzer.ModeLegalizeExecute:
		return d.legalizer
	default:
		return d.legacy
	}
}

func (d *Dispatcher) recordDecision(ctx context.Context, rec *DecisionRecord) {
	if d.store == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err == nil {
		err = d.store.Append(ctx, rec.RequestID, audit.EventDecision, payload,
			map[string]string{logfields.KeyBackend: rec.Executor})
	}
	if err != nil {
		slog.Warn("Failed to record dispatch decision",
			logfields.RequestID(rec.RequestID),
			logfields.Error(err))
	}
}

func (d *Dispatcher) recordOutcome(ctx context.Context, rec *DecisionRecord, execErr error, elapsed time.Duration) {
	status := metrics.StatusExecutionSuccess
	if execErr != nil {
		status = metrics.StatusExecutionFailure
	}
	slog.Info("Compilation dispatched",
		logfields.RequestID(rec.RequestID),
		logfields.Backend(rec.Executor),
		logfields.Mode(string(rec.Mode)),
		logfields.Status(status),
		logfields.DurationMS(float64(elapsed.Milliseconds())))

	if d.store == nil {
		return
	}
	outcome := map[string]any{
		logfields.KeyStatus:     status,
		logfields.KeyDurationMS: float64(elapsed.Milliseconds()),
	}
	if execErr != nil {
		outcome[logfields.KeyError] = execErr.Error()
	}
	payload, err := json.Marshal(outcome)
	if err == nil {
		err = d.store.Append(ctx, rec.RequestID, audit.EventOutcome, payload, nil)
	}
	if err != nil {
		slog.Warn("Failed to record dispatch outcome",
			logfields.RequestID(rec.RequestID),
			logfields.Error(err))
	}
}

func (d *Dispatcher) publish(ctx context.Context, req *graph.CompilationRequest, rec *DecisionRecord, execErr error) {
	if d.publisher == nil {
		return
	}
	event := &telemetry.DispatchEvent{
		RequestID:  rec.RequestID,
		DeviceType: req.Metadata().DeviceType,
		Mode:       rec.Mode,
		Executor:   rec.Executor,
		DecisionOK: rec.DecisionOK,
		Flagged:    rec.Flagged,
		Succeeded:  execErr == nil,
	}
	if execErr != nil {
		event.Error = execErr.Error()
	}
	if err := d.publisher.PublishDispatch(ctx, event); err != nil {
		slog.Warn("Failed to publish dispatch event",
			logfields.RequestID(rec.RequestID),
			logfields.Error(err))
	}
}
