package metrics

import "strings"

// Metric names owned by the dispatch core. Each is a monotonic counter keyed
// by (name, label tuple) for the lifetime of the process.
const (
	// MetricLegalizeFailures counts per-construct lowering failures raised by
	// the legalization backend while it was actually executing a lowering.
	// Labels: construct.
	MetricLegalizeFailures = "legalize_failures_total"

	// MetricLegalizeFlagged counts constructs flagged as unsupported during
	// the analysis-only decision phase. Labels: construct, category.
	MetricLegalizeFlagged = "legalize_flagged_total"

	// MetricCompilationStatus counts phase outcomes. Labels: status, with the
	// four mutually exclusive values below.
	MetricCompilationStatus = "compilation_status_total"
)

// Status label values for MetricCompilationStatus.
const (
	StatusDecisionSuccess  = "decision_success"
	StatusDecisionFailure  = "decision_failure"
	StatusExecutionSuccess = "execution_success"
	StatusExecutionFailure = "execution_failure"
)

// Registry is the injectable counter surface shared by the dispatcher and the
// backend adapters. Increments must be atomic across concurrent callers and
// values must never be observed to decrease. Implementations may forward to
// Prometheus, keep counts in memory, or do nothing.
type Registry interface {
	// Inc increments the counter for (name, labels) by one.
	Inc(name string, labels ...string)

	// Value returns the current count for (name, labels).
	Value(name string, labels ...string) uint64

	// Collect returns a snapshot of every label tuple currently present for
	// the named metric, keyed by LabelKey.
	Collect(name string) map[string]uint64
}

// LabelKey encodes a label tuple as a single map key.
func LabelKey(labels ...string) string {
	return strings.Join(labels, "|")
}

// NoopRegistry is a Registry that does nothing (default when metrics are not
// configured, allowing optional injection without nil checks).
type NoopRegistry struct{}

func (NoopRegistry) Inc(string, ...string)            {}
func (NoopRegistry) Value(string, ...string) uint64   { return 0 }
func (NoopRegistry) Collect(string) map[string]uint64 { return nil }
