package observability

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counter names emitted by the workflow engine.
const (
	MetricWorkflowExecutions = "workflow_execution_count"
	MetricFailures           = "failure_count"
	MetricCacheHits          = "workflow_cache_hit_count"
)

// Collector receives workflow counters.
type Collector interface {
	Inc(name string)
	IncLabeled(name string, labels map[string]string)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[string]int64            `json:"counters"`
	Labeled  map[string]map[string]int64 `json:"labeled"`
}

// MetricsCollector keeps in-process counters and optionally mirrors each
// increment to an OpenTelemetry meter. Labeled counters are keyed by a
// canonical "k=v|k=v" string with keys sorted, so the same label set always
// lands on the same series.
type MetricsCollector struct {
	mu       sync.Mutex
	counters map[string]int64
	labeled  map[string]map[string]int64

	meter       metric.Meter
	instruments map[string]metric.Int64Counter
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters: make(map[string]int64),
		labeled:  make(map[string]map[string]int64),
	}
}

// NewMetricsCollectorWithMeter mirrors every increment to the given meter
// in addition to the in-process counters.
func NewMetricsCollectorWithMeter(meter metric.Meter) *MetricsCollector {
	c := NewMetricsCollector()
	c.meter = meter
	c.instruments = make(map[string]metric.Int64Counter)
	return c
}

func (c *MetricsCollector) Inc(name string) {
	c.mu.Lock()
	c.counters[name]++
	c.mu.Unlock()
	c.record(name, nil)
}

func (c *MetricsCollector) IncLabeled(name string, labels map[string]string) {
	key := LabelKey(labels)
	c.mu.Lock()
	series, ok := c.labeled[name]
	if !ok {
		series = make(map[string]int64)
		c.labeled[name] = series
	}
	series[key]++
	c.mu.Unlock()
	c.record(name, labels)
}

// Counter returns the unlabeled count for a name.
func (c *MetricsCollector) Counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// LabeledCounter returns the count for a name and label set.
func (c *MetricsCollector) LabeledCounter(name string, labels map[string]string) int64 {
	key := LabelKey(labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.labeled[name][key]
}

// Export returns a deep copy of all counters.
func (c *MetricsCollector) Export() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Counters: make(map[string]int64, len(c.counters)),
		Labeled:  make(map[string]map[string]int64, len(c.labeled)),
	}
	for name, v := range c.counters {
		snap.Counters[name] = v
	}
	for name, series := range c.labeled {
		copied := make(map[string]int64, len(series))
		for key, v := range series {
			copied[key] = v
		}
		snap.Labeled[name] = copied
	}
	return snap
}

func (c *MetricsCollector) record(name string, labels map[string]string) {
	if c.meter == nil {
		return
	}
	c.mu.Lock()
	counter, ok := c.instruments[name]
	if !ok {
		var err error
		counter, err = c.meter.Int64Counter(name)
		if err != nil {
			c.mu.Unlock()
			return
		}
		c.instruments[name] = counter
	}
	c.mu.Unlock()

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// LabelKey canonicalizes a label set into "k=v|k=v" with keys sorted.
func LabelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, "|")
}
