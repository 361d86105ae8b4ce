package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/graphbridge/internal/analyzer"
	"git.home.luguber.info/inful/graphbridge/internal/audit"
	"git.home.luguber.info/inful/graphbridge/internal/backend"
	berrors "git.home.luguber.info/inful/graphbridge/internal/errors"
	"git.home.luguber.info/inful/graphbridge/internal/graph"
	"git.home.luguber.info/inful/graphbridge/internal/metrics"
	"git.home.luguber.info/inful/graphbridge/internal/telemetry"
)

const supportedSource = `
  module attributes {tf.versions = {producer = 268 : i32}} {
  func.func @main(%arg0 : tensor<1xf32>) -> tensor<1xf32> {
    %0 = "tf.Acos"(%arg0) : (tensor<1xf32>) -> tensor<1xf32>
   func.return %0 : tensor<1xf32>
  }
}`

const unsupportedSource = `
  module attributes {tf.versions = {producer = 268 : i32}} {
    func.func @main() -> tensor<1xi32> {
      %0 = "tf.DoesntExist"() {value = dense<1000> : tensor<1xi32>} : () -> tensor<1xi32>
      func.return %0 : tensor<1xi32>
    }
  }`

func newRequest(t *testing.T, source string) *graph.CompilationRequest {
	t.Helper()
	req, err := graph.NewCompilationRequest(source, []graph.ArgumentShape{{1}}, graph.Metadata{
		Args: []graph.ArgumentRecord{
			{DataType: "DT_FLOAT", Role: graph.RoleParameter},
			{DataType: "DT_FLOAT", Role: graph.RoleRetval},
		},
		UseTupleArgs: true,
		DeviceType:   "XLA_TPU_JIT",
	})
	require.NoError(t, err)
	return req
}

// newDispatcher wires RuleSet collaborators the way the host does: both
// backends can lower tf.Acos and neither can lower tf.DoesntExist.
func newDispatcher(reg metrics.Registry, available bool, mode analyzer.Mode, opts ...Option) *Dispatcher {
	legalizeRules := backend.NewRuleSet(backend.LegalizationBackendName, []string{"tf.Acos"})
	legacyRules := backend.NewRuleSet(backend.LegacyBackendName, []string{"tf.Acos"})

	legalizer := backend.NewLegalizationBackend(legalizeRules.Survey, legalizeRules.Compile, reg)
	legacy := backend.NewLegacyBackend(legacyRules.Compile)

	opts = append([]Option{WithMetrics(reg)}, opts...)
	return New(analyzer.NewRolloutAnalyzer(available, mode), legalizer, legacy, opts...)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*telemetry.DispatchEvent
}

func (c *capturePublisher) PublishDispatch(_ context.Context, e *telemetry.DispatchEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestCompileSupportedGraphUsesLegacyLowering(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	d := newDispatcher(reg, true, analyzer.ModeLegacyExecute)

	status := metrics.NewCounterReader(reg, metrics.MetricCompilationStatus)
	attempts := metrics.NewCounterReader(reg, metrics.MetricLegalizeFailures)

	artifact, err := d.Compile(context.Background(), newRequest(t, supportedSource))

	require.NoError(t, err)
	require.NotNil(t, artifact)
	require.Equal(t, backend.LegacyBackendName, artifact.Backend)

	require.Equal(t, uint64(1), status.Delta(metrics.StatusDecisionSuccess))
	require.Equal(t, uint64(1), status.Delta(metrics.StatusExecutionSuccess))
	require.Zero(t, status.Delta(metrics.StatusDecisionFailure))
	require.Zero(t, status.Delta(metrics.StatusExecutionFailure))
	require.Zero(t, attempts.Delta("tf.Acos"))
}

func TestCompileCountsDecisionPassingAndLegacyFailing(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	d := newDispatcher(reg, true, analyzer.ModeLegacyExecute)

	status := metrics.NewCounterReader(reg, metrics.MetricCompilationStatus)
	flagged := metrics.NewCounterReader(reg, metrics.MetricLegalizeFlagged)
	attempts := metrics.NewCounterReader(reg, metrics.MetricLegalizeFailures)

	artifact, err := d.Compile(context.Background(), newRequest(t, unsupportedSource))

	require.Nil(t, artifact)
	require.True(t, berrors.IsUnsupported(err))
	require.Equal(t, "tf.DoesntExist", berrors.ConstructOf(err))

	// Flagging an unsupported construct is a completed decision phase.
	require.Equal(t, uint64(1), status.Delta(metrics.StatusDecisionSuccess))
	require.Equal(t, uint64(1), status.Delta(metrics.StatusExecutionFailure))
	require.Zero(t, status.Delta(metrics.StatusDecisionFailure))
	require.Zero(t, status.Delta(metrics.StatusExecutionSuccess))

	require.Equal(t, uint64(1), flagged.Delta("tf.DoesntExist", "Unknown"))
	// Constructs not present in the graph stay untouched.
	require.Zero(t, flagged.Delta("tf.Acos", "Unknown"))
	// Never failed to legalize because it was never attempted.
	require.Zero(t, attempts.Read("tf.DoesntExist"))
}

func TestCompileShortCircuitsWhenAnalysisUnavailable(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	store, err := audit.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	pub := &capturePublisher{}

	d := newDispatcher(reg, false, analyzer.ModeLegacyExecute,
		WithAuditStore(store), WithPublisher(pub))

	artifact, err := d.Compile(context.Background(), newRequest(t, supportedSource))

	require.Nil(t, artifact)
	require.ErrorIs(t, err, berrors.ErrGraphAnalysisUnavailable)

	// Zero metric side effects of any kind.
	require.Empty(t, reg.Collect(metrics.MetricCompilationStatus))
	require.Empty(t, reg.Collect(metrics.MetricLegalizeFlagged))
	require.Empty(t, reg.Collect(metrics.MetricLegalizeFailures))

	// No audit record, no telemetry event either.
	records, err := store.GetByRequestID(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, records)
	require.Empty(t, pub.events)
}

func TestCompileExactlyOneCounterPerPhase(t *testing.T) {
	failingSurvey := func(context.Context, *graph.CompilationRequest) (*backend.SurveyReport, error) {
		return nil, berrors.Internal("malformed module", nil)
	}
	okSurvey := func(context.Context, *graph.CompilationRequest) (*backend.SurveyReport, error) {
		return &backend.SurveyReport{}, nil
	}
	failingCompile := func(context.Context, *graph.CompilationRequest) (*graph.Artifact, error) {
		return nil, berrors.Internal("lowering crashed", nil)
	}
	okCompile := func(_ context.Context, req *graph.CompilationRequest) (*graph.Artifact, error) {
		return &graph.Artifact{ID: "a", Backend: backend.LegacyBackendName, RequestID: req.ID()}, nil
	}

	cases := []struct {
		name    string
		survey  backend.SurveyFunc
		compile backend.CompileFunc
	}{
		{"both succeed", okSurvey, okCompile},
		{"decision fails", failingSurvey, okCompile},
		{"execution fails", okSurvey, failingCompile},
		{"both fail", failingSurvey, failingCompile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := metrics.NewMemoryRegistry()
			legalizer := backend.NewLegalizationBackend(tc.survey, nil, reg)
			legacy := backend.NewLegacyBackend(tc.compile)
			d := New(analyzer.NewRolloutAnalyzer(true, analyzer.ModeLegacyExecute),
				legalizer, legacy, WithMetrics(reg))

			_, _ = d.Compile(context.Background(), newRequest(t, supportedSource))

			decision := reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionSuccess) +
				reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionFailure)
			execution := reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess) +
				reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionFailure)

			// Never zero, never two.
			require.Equal(t, uint64(1), decision)
			require.Equal(t, uint64(1), execution)
		})
	}
}

func TestDecisionFailureDoesNotSuppressExecution(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	legalizer := backend.NewLegalizationBackend(
		func(context.Context, *graph.CompilationRequest) (*backend.SurveyReport, error) {
			return nil, berrors.Internal("malformed module", nil)
		}, nil, reg)
	legacyRules := backend.NewRuleSet(backend.LegacyBackendName, []string{"tf.Acos"})
	d := New(analyzer.NewRolloutAnalyzer(true, analyzer.ModeLegacyExecute),
		legalizer, backend.NewLegacyBackend(legacyRules.Compile), WithMetrics(reg))

	artifact, err := d.Compile(context.Background(), newRequest(t, supportedSource))

	require.NoError(t, err)
	require.NotNil(t, artifact)
	require.Equal(t, uint64(1), reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionFailure))
	require.Equal(t, uint64(1), reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess))
}

func TestCompileReturnsExecutorErrorVerbatim(t *testing.T) {
	wantErr := berrors.Internal("lowering crashed", nil)
	legalizer := backend.NewLegalizationBackend(
		func(context.Context, *graph.CompilationRequest) (*backend.SurveyReport, error) {
			return &backend.SurveyReport{}, nil
		}, nil, nil)
	legacy := backend.NewLegacyBackend(
		func(context.Context, *graph.CompilationRequest) (*graph.Artifact, error) {
			return nil, wantErr
		})
	d := New(analyzer.NewRolloutAnalyzer(true, analyzer.ModeLegacyExecute), legalizer, legacy)

	_, err := d.Compile(context.Background(), newRequest(t, supportedSource))
	require.Same(t, wantErr, err)
}

func TestFutureModeRoutesExecutionToLegalizer(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	d := newDispatcher(reg, true, analyzer.ModeLegalizeExecute)

	// Supported graph compiles via the legalization backend.
	artifact, err := d.Compile(context.Background(), newRequest(t, supportedSource))
	require.NoError(t, err)
	require.Equal(t, backend.LegalizationBackendName, artifact.Backend)
	require.Equal(t, uint64(1), reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess))

	// Unsupported graph: now the legalization pass is the executor, so the
	// per-construct attempt counter does move.
	_, err = d.Compile(context.Background(), newRequest(t, unsupportedSource))
	require.True(t, berrors.IsUnsupported(err))
	require.Equal(t, uint64(1), reg.Value(metrics.MetricLegalizeFailures, "tf.DoesntExist"))
	require.Equal(t, uint64(1), reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionFailure))
	// Phase accounting shape is unchanged by the mode.
	require.Equal(t, uint64(2), reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionSuccess))
}

func TestCompileWritesAuditTrail(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	store, err := audit.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	d := newDispatcher(reg, true, analyzer.ModeLegacyExecute, WithAuditStore(store))

	req := newRequest(t, supportedSource)
	_, err = d.Compile(context.Background(), req)
	require.NoError(t, err)

	records, err := store.GetByRequestID(context.Background(), req.ID())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, audit.EventDecision, records[0].EventType)
	require.Equal(t, audit.EventOutcome, records[1].EventType)
	require.Equal(t, backend.LegacyBackendName, records[0].Metadata["backend"])
}

func TestCompilePublishesDispatchEvent(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	pub := &capturePublisher{}
	d := newDispatcher(reg, true, analyzer.ModeLegacyExecute, WithPublisher(pub))

	req := newRequest(t, unsupportedSource)
	_, err := d.Compile(context.Background(), req)
	require.Error(t, err)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	require.Equal(t, req.ID(), event.RequestID)
	require.Equal(t, backend.LegacyBackendName, event.Executor)
	require.Equal(t, analyzer.ModeLegacyExecute, event.Mode)
	require.True(t, event.DecisionOK)
	require.False(t, event.Succeeded)
	require.Len(t, event.Flagged, 1)
	require.Equal(t, "tf.DoesntExist", event.Flagged[0].Construct)
}

func TestConcurrentDispatchesAccountExactly(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	d := newDispatcher(reg, true, analyzer.ModeLegacyExecute)

	const requests = 32
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(bad bool) {
			defer wg.Done()
			source := supportedSource
			if bad {
				source = unsupportedSource
			}
			req, err := graph.NewCompilationRequest(source, nil, graph.Metadata{DeviceType: "XLA_TPU_JIT"})
			if err != nil {
				t.Error(err)
				return
			}
			_, _ = d.Compile(context.Background(), req)
		}(i%2 == 1)
	}
	wg.Wait()

	decision := reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionSuccess) +
		reg.Value(metrics.MetricCompilationStatus, metrics.StatusDecisionFailure)
	execution := reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionSuccess) +
		reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionFailure)

	require.Equal(t, uint64(requests), decision)
	require.Equal(t, uint64(requests), execution)
	require.Equal(t, uint64(requests/2), reg.Value(metrics.MetricCompilationStatus, metrics.StatusExecutionFailure))
	require.Equal(t, uint64(requests/2), reg.Value(metrics.MetricLegalizeFlagged, "tf.DoesntExist", "Unknown"))
	require.Empty(t, reg.Collect(metrics.MetricLegalizeFailures))
}
