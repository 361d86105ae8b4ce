package metrics

import (
	"sync"
	"sync/atomic"
)

// MemoryRegistry is an in-process Registry backed by atomic counters. The
// mutex guards only the cell map; increments and reads are lock-free once a
// cell exists, so a slow reader never blocks concurrent increments.
type MemoryRegistry struct {
	mu    sync.RWMutex
	cells map[string]map[string]*uint64 // metric name -> label key -> count
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{cells: make(map[string]map[string]*uint64)}
}

// Inc increments the counter for (name, labels) by one.
func (m *MemoryRegistry) Inc(name string, labels ...string) {
	atomic.AddUint64(m.cell(name, labels...), 1)
}

// Value returns the current count for (name, labels).
func (m *MemoryRegistry) Value(name string, labels ...string) uint64 {
	m.mu.RLock()
	byLabel, ok := m.cells[name]
	var c *uint64
	if ok {
		c = byLabel[LabelKey(labels...)]
	}
	m.mu.RUnlock()

	if c == nil {
		return 0
	}
	return atomic.LoadUint64(c)
}

// Collect returns a snapshot of all label tuples for the named metric.
func (m *MemoryRegistry) Collect(name string) map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]uint64, len(m.cells[name]))
	for key, c := range m.cells[name] {
		out[key] = atomic.LoadUint64(c)
	}
	return out
}

func (m *MemoryRegistry) cell(name string, labels ...string) *uint64 {
	key := LabelKey(labels...)

	m.mu.RLock()
	if byLabel, ok := m.cells[name]; ok {
		if c, ok := byLabel[key]; ok {
			m.mu.RUnlock()
			return c
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	byLabel, ok := m.cells[name]
	if !ok {
		byLabel = make(map[string]*uint64)
		m.cells[name] = byLabel
	}
	c, ok := byLabel[key]
	if !ok {
		c = new(uint64)
		byLabel[key] = c
	}
	return c
}
