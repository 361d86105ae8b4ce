package metrics

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPromRegistryIncAndValue(t *testing.T) {
	p := NewPromRegistry(prom.NewRegistry())

	p.Inc(MetricCompilationStatus, StatusDecisionSuccess)
	p.Inc(MetricCompilationStatus, StatusDecisionSuccess)
	p.Inc(MetricLegalizeFlagged, "tf.DoesntExist", "Unknown")

	require.Equal(t, uint64(2), p.Value(MetricCompilationStatus, StatusDecisionSuccess))
	require.Equal(t, uint64(1), p.Value(MetricLegalizeFlagged, "tf.DoesntExist", "Unknown"))
	require.Zero(t, p.Value(MetricCompilationStatus, StatusExecutionFailure))
}

func TestPromRegistryIgnoresUnknownMetrics(t *testing.T) {
	p := NewPromRegistry(prom.NewRegistry())

	p.Inc("not_a_dispatch_metric", "x")
	require.Zero(t, p.Value("not_a_dispatch_metric", "x"))
	require.Nil(t, p.Collect("not_a_dispatch_metric"))

	// Wrong label arity is also ignored rather than panicking.
	p.Inc(MetricCompilationStatus, "a", "b")
	require.Zero(t, p.Value(MetricCompilationStatus, "a", "b"))
}

func TestPromRegistryCollectPreservesDeclaredLabelOrder(t *testing.T) {
	p := NewPromRegistry(prom.NewRegistry())

	// Prometheus sorts labels alphabetically (category before construct);
	// Collect keys must still use the declared (construct, category) order.
	p.Inc(MetricLegalizeFlagged, "tf.DoesntExist", "Unknown")

	got := p.Collect(MetricLegalizeFlagged)
	require.Equal(t, map[string]uint64{LabelKey("tf.DoesntExist", "Unknown"): 1}, got)
}

func TestPromRegistryScrapes(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPromRegistry(reg)
	p.Inc(MetricCompilationStatus, StatusExecutionSuccess)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
