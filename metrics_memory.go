package mqtt311

import (
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryMetrics keeps metrics in memory. It backs the statistics printed
// by the example programs and the metric assertions in tests.
type MemoryMetrics struct {
	mu      sync.RWMutex
	entries map[memoryKey]any
}

type memoryKey struct {
	kind MetricType
	id   string
}

// NewMemoryMetrics creates an empty MemoryMetrics.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{entries: make(map[memoryKey]any)}
}

// metricID renders name and labels as name{k1=v1,k2=v2} with labels
// sorted by key, so equal label sets always share one metric.
func metricID(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')

	return b.String()
}

// entry returns the metric stored under key, creating it with create.
func (m *MemoryMetrics) entry(key memoryKey, create func() any) any {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		return e
	}
	e = create()
	m.entries[key] = e
	return e
}

func (m *MemoryMetrics) find(key memoryKey) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	return e, ok
}

// Counter returns the counter for name and labels.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	key := memoryKey{MetricTypeCounter, metricID(name, labels)}
	return m.entry(key, func() any { return &memoryCounter{} }).(*memoryCounter)
}

// Gauge returns the gauge for name and labels.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	key := memoryKey{MetricTypeGauge, metricID(name, labels)}
	return m.entry(key, func() any { return &memoryGauge{} }).(*memoryGauge)
}

// Histogram returns the histogram for name and labels.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	key := memoryKey{MetricTypeHistogram, metricID(name, labels)}
	return m.entry(key, func() any { return &memoryHistogram{} }).(*memoryHistogram)
}

// GetCounter returns a counter for testing, or nil if it was never used.
func (m *MemoryMetrics) GetCounter(name string, labels MetricLabels) Counter {
	if e, ok := m.find(memoryKey{MetricTypeCounter, metricID(name, labels)}); ok {
		return e.(*memoryCounter)
	}
	return nil
}

// GetGauge returns a gauge for testing, or nil if it was never used.
func (m *MemoryMetrics) GetGauge(name string, labels MetricLabels) Gauge {
	if e, ok := m.find(memoryKey{MetricTypeGauge, metricID(name, labels)}); ok {
		return e.(*memoryGauge)
	}
	return nil
}

// GetHistogram returns a histogram for testing, or nil if it was never used.
func (m *MemoryMetrics) GetHistogram(name string, labels MetricLabels) Histogram {
	if e, ok := m.find(memoryKey{MetricTypeHistogram, metricID(name, labels)}); ok {
		return e.(*memoryHistogram)
	}
	return nil
}

// MetricValue is one entry of a Snapshot.
type MetricValue struct {
	// Key is the metric name followed by its labels in braces.
	Key string

	// Type is the kind of metric.
	Type MetricType

	// Value is the counter or gauge value, or the observation count of a histogram.
	Value float64
}

// Snapshot returns the current value of every metric, sorted by key.
func (m *MemoryMetrics) Snapshot() []MetricValue {
	m.mu.RLock()
	values := make([]MetricValue, 0, len(m.entries))
	for key, e := range m.entries {
		v := MetricValue{Key: key.id, Type: key.kind}
		switch e := e.(type) {
		case *memoryCounter:
			v.Value = e.Value()
		case *memoryGauge:
			v.Value = e.Value()
		case *memoryHistogram:
			v.Value = float64(e.Count())
		}
		values = append(values, v)
	}
	m.mu.RUnlock()

	slices.SortFunc(values, func(a, b MetricValue) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return int(a.Type) - int(b.Type)
	})

	return values
}

// atomicFloat is a float64 updated without locks.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) Add(delta float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

type memoryCounter struct{ v atomicFloat }

func (c *memoryCounter) Inc()              { c.v.Add(1) }
func (c *memoryCounter) Add(delta float64) { c.v.Add(delta) }
func (c *memoryCounter) Value() float64    { return c.v.Load() }

type memoryGauge struct{ v atomicFloat }

func (g *memoryGauge) Set(value float64) { g.v.Store(value) }
func (g *memoryGauge) Inc()              { g.v.Add(1) }
func (g *memoryGauge) Dec()              { g.v.Add(-1) }
func (g *memoryGauge) Add(delta float64) { g.v.Add(delta) }
func (g *memoryGauge) Sub(delta float64) { g.v.Add(-delta) }
func (g *memoryGauge) Value() float64    { return g.v.Load() }

type memoryHistogram struct {
	count atomic.Uint64
	sum   atomicFloat
}

func (h *memoryHistogram) Observe(value float64) {
	h.count.Add(1)
	h.sum.Add(value)
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }
func (h *memoryHistogram) Count() uint64                   { return h.count.Load() }
func (h *memoryHistogram) Sum() float64                    { return h.sum.Load() }
