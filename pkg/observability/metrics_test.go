package observability_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veridian-labs/govpipe/pkg/observability"
)

func TestLabelKeyCanonicalOrder(t *testing.T) {
	key := observability.LabelKey(map[string]string{
		"workflow_type": "risk",
		"category":      "VALIDATION_ERROR",
	})
	assert.Equal(t, "category=VALIDATION_ERROR|workflow_type=risk", key)

	assert.Equal(t, "", observability.LabelKey(nil))
	assert.Equal(t, "", observability.LabelKey(map[string]string{}))
}

func TestCollectorCounts(t *testing.T) {
	collector := observability.NewMetricsCollector()

	collector.Inc(observability.MetricWorkflowExecutions)
	collector.Inc(observability.MetricWorkflowExecutions)
	assert.Equal(t, int64(2), collector.Counter(observability.MetricWorkflowExecutions))
	assert.Equal(t, int64(0), collector.Counter(observability.MetricFailures))
}

func TestCollectorLabeledSeries(t *testing.T) {
	collector := observability.NewMetricsCollector()

	validation := map[string]string{"category": "VALIDATION_ERROR", "workflow_type": "risk"}
	governance := map[string]string{"category": "GOVERNANCE_ERROR", "workflow_type": "risk"}

	collector.IncLabeled(observability.MetricFailures, validation)
	collector.IncLabeled(observability.MetricFailures, validation)
	collector.IncLabeled(observability.MetricFailures, governance)

	assert.Equal(t, int64(2), collector.LabeledCounter(observability.MetricFailures, validation))
	assert.Equal(t, int64(1), collector.LabeledCounter(observability.MetricFailures, governance))

	// Same labels in a different map order hit the same series.
	reordered := map[string]string{"workflow_type": "risk", "category": "VALIDATION_ERROR"}
	assert.Equal(t, int64(2), collector.LabeledCounter(observability.MetricFailures, reordered))
}

func TestCollectorExportIsDeepCopy(t *testing.T) {
	collector := observability.NewMetricsCollector()
	collector.Inc(observability.MetricWorkflowExecutions)
	collector.IncLabeled(observability.MetricFailures, map[string]string{"category": "UNKNOWN_ERROR"})

	snap := collector.Export()
	snap.Counters[observability.MetricWorkflowExecutions] = 99
	snap.Labeled[observability.MetricFailures]["category=UNKNOWN_ERROR"] = 99

	assert.Equal(t, int64(1), collector.Counter(observability.MetricWorkflowExecutions))
	assert.Equal(t, int64(1), collector.LabeledCounter(observability.MetricFailures,
		map[string]string{"category": "UNKNOWN_ERROR"}))
}

func TestCollectorConcurrentIncrements(t *testing.T) {
	collector := observability.NewMetricsCollector()
	labels := map[string]string{"workflow_type": "compliance"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.Inc(observability.MetricWorkflowExecutions)
			collector.IncLabeled(observability.MetricCacheHits, labels)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), collector.Counter(observability.MetricWorkflowExecutions))
	assert.Equal(t, int64(50), collector.LabeledCounter(observability.MetricCacheHits, labels))
}
