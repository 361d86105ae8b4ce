package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterReaderDelta(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Inc(MetricCompilationStatus, StatusDecisionSuccess) // pre-existing count

	reader := NewCounterReader(reg, MetricCompilationStatus)
	require.Zero(t, reader.Delta(StatusDecisionSuccess))

	reg.Inc(MetricCompilationStatus, StatusDecisionSuccess)
	reg.Inc(MetricCompilationStatus, StatusDecisionSuccess)
	require.Equal(t, uint64(2), reader.Delta(StatusDecisionSuccess))

	// Baseline moves forward after each Delta call.
	require.Zero(t, reader.Delta(StatusDecisionSuccess))
}

func TestCounterReaderUnseenLabelBaselinesAtZero(t *testing.T) {
	reg := NewMemoryRegistry()
	reader := NewCounterReader(reg, MetricLegalizeFailures)

	reg.Inc(MetricLegalizeFailures, "tf.Acos")
	require.Equal(t, uint64(1), reader.Delta("tf.Acos"))
}

func TestReadIsIdempotentWithoutIntervening(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Inc(MetricCompilationStatus, StatusExecutionSuccess)

	reader := NewCounterReader(reg, MetricCompilationStatus)
	first := reader.Read(StatusExecutionSuccess)
	second := reader.Read(StatusExecutionSuccess)
	require.Equal(t, first, second)
	require.Equal(t, uint64(1), first)
}

func TestCounterReaderWorksAgainstPrometheus(t *testing.T) {
	p := NewPromRegistry(nil)
	p.Inc(MetricLegalizeFlagged, "tf.X", "Unknown")

	reader := NewCounterReader(p, MetricLegalizeFlagged)
	require.Zero(t, reader.Delta("tf.X", "Unknown"))

	p.Inc(MetricLegalizeFlagged, "tf.X", "Unknown")
	require.Equal(t, uint64(1), reader.Delta("tf.X", "Unknown"))
	require.Equal(t, uint64(2), reader.Read("tf.X", "Unknown"))
}
