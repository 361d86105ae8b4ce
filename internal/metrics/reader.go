package metrics

import "sync"

// CounterReader observes one named metric with baseline-then-delta semantics.
// The baseline for every label tuple is captured at construction; label tuples
// that did not exist yet baseline at zero.
type CounterReader struct {
	reg  Registry
	name string

	mu   sync.Mutex
	base map[string]uint64
}

// NewCounterReader snapshots the metric's current cells as the baseline.
func NewCounterReader(reg Registry, name string) *CounterReader {
	base := reg.Collect(name)
	if base == nil {
		base = make(map[string]uint64)
	}
	return &CounterReader{reg: reg, name: name, base: base}
}

// Read returns the current count for the label tuple.
func (r *CounterReader) Read(labels ...string) uint64 {
	return r.reg.Value(r.name, labels...)
}

// Delta returns the increase since the baseline for the label tuple and moves
// the baseline forward, so successive calls report successive increases.
func (r *CounterReader) Delta(labels ...string) uint64 {
	cur := r.reg.Value(r.name, labels...)
	key := LabelKey(labels...)

	r.mu.Lock()
	defer r.mu.Unlock()
	d := cur - r.base[key]
	r.base[key] = cur
	return d
}
