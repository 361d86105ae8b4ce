package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "graphbridge"

// promMetricLabels fixes the declared label order per metric. Prometheus
// reports labels alphabetically, so Collect must rebuild keys in this order.
var promMetricLabels = map[string][]string{
	MetricLegalizeFailures:  {"construct"},
	MetricLegalizeFlagged:   {"construct", "category"},
	MetricCompilationStatus: {"status"},
}

// PromRegistry implements Registry using Prometheus counters registered on an
// injectable registry, so tests can substitute an isolated instance.
type PromRegistry struct {
	reg  *prom.Registry
	vecs map[string]*prom.CounterVec
}

// NewPromRegistry constructs and registers the dispatch counters. Register at
// most once per underlying Prometheus registry.
func NewPromRegistry(reg *prom.Registry) *PromRegistry {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	p := &PromRegistry{
		reg: reg,
		vecs: map[string]*prom.CounterVec{
			MetricLegalizeFailures: prom.NewCounterVec(prom.CounterOpts{
				Namespace: namespace,
				Name:      MetricLegalizeFailures,
				Help:      "Constructs the legalization backend failed to lower while executing",
			}, promMetricLabels[MetricLegalizeFailures]),
			MetricLegalizeFlagged: prom.NewCounterVec(prom.CounterOpts{
				Namespace: namespace,
				Name:      MetricLegalizeFlagged,
				Help:      "Constructs flagged as unsupported during the decision phase",
			}, promMetricLabels[MetricLegalizeFlagged]),
			MetricCompilationStatus: prom.NewCounterVec(prom.CounterOpts{
				Namespace: namespace,
				Name:      MetricCompilationStatus,
				Help:      "Decision and execution phase outcomes by status",
			}, promMetricLabels[MetricCompilationStatus]),
		},
	}
	for _, vec := range p.vecs {
		reg.MustRegister(vec)
	}
	return p
}

// Registry returns the underlying Prometheus registry for HTTP exposition.
func (p *PromRegistry) Registry() *prom.Registry { return p.reg }

// Inc increments the counter for (name, labels). Metric names outside the
// dispatch core are ignored.
func (p *PromRegistry) Inc(name string, labels ...string) {
	vec, ok := p.vecs[name]
	if !ok || len(labels) != len(promMetricLabels[name]) {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// Value returns the current count for (name, labels).
func (p *PromRegistry) Value(name string, labels ...string) uint64 {
	vec, ok := p.vecs[name]
	if !ok || len(labels) != len(promMetricLabels[name]) {
		return 0
	}
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return uint64(pb.GetCounter().GetValue())
}

// Collect returns a snapshot of all label tuples for the named metric.
func (p *PromRegistry) Collect(name string) map[string]uint64 {
	order, ok := promMetricLabels[name]
	if !ok {
		return nil
	}
	fqName := namespace + "_" + name

	out := make(map[string]uint64)
	mfs, err := p.reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range mfs {
		if mf.GetName() != fqName {
			continue
		}
		for _, m := range mf.GetMetric() {
			byName := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				byName[lp.GetName()] = lp.GetValue()
			}
			values := make([]string, len(order))
			for i, ln := range order {
				values[i] = byName[ln]
			}
			out[LabelKey(values...)] = uint64(m.GetCounter().GetValue())
		}
	}
	return out
}
