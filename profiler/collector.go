package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// Measurement is an in-flight layer measurement handed out by
// StartLayerMonitoring. Enrichment calls mutate it until
// StopLayerMonitoring finalizes it, after which it becomes inert.
type Measurement struct {
	metrics   LayerMetrics
	finalized bool
}

// Collector accumulates LayerMetrics per layer across repeated runs of one
// profiling session. History per layer name is append-only, ordered by
// finalization time; records are never mutated post-append, with the single
// exception of ComputePercentiles writing percentile fields onto a layer's
// latest record.
//
// Profiling is expected to be single-threaded (hooks run on the host's
// execution thread), but the collector is guarded anyway in case multiple
// graphs are profiled in one process.
type Collector struct {
	mu        sync.Mutex
	sessionID string
	history   map[string][]LayerMetrics
	order     []string // layer names in first-finalization order

	now func() time.Time
}

// NewCollector creates a collector for one profiling session and stamps it
// with a fresh session id. Create one per session; append-only while
// profiling, read-only during planning.
func NewCollector() *Collector {
	return &Collector{
		sessionID: uuid.NewString(),
		history:   make(map[string][]LayerMetrics),
		now:       time.Now,
	}
}

// SessionID returns the unique id tagged onto every record this collector
// finalizes.
func (c *Collector) SessionID() string {
	return c.sessionID
}

// StartLayerMonitoring opens a measurement window for one layer invocation.
// The returned handle is enriched and then finalized via StopLayerMonitoring.
func (c *Collector) StartLayerMonitoring(layerName, layerType string, layerIndex int) *Measurement {
	return &Measurement{
		metrics: LayerMetrics{
			LayerName:  layerName,
			LayerType:  layerType,
			LayerIndex: layerIndex,
			SessionID:  c.sessionID,
		},
	}
}

// RecordMemoryUsage snapshots device and host memory around the invocation.
// No-op after finalization.
func (c *Collector) RecordMemoryUsage(m *Measurement, vramBefore, vramAfter, ramBefore, ramAfter int64) {
	if m == nil || m.finalized {
		return
	}
	m.metrics.PeakVRAMBefore = vramBefore
	m.metrics.PeakVRAMAfter = vramAfter
	m.metrics.VRAMIncrease = vramAfter - vramBefore
	m.metrics.PeakRAMBefore = ramBefore
	m.metrics.PeakRAMAfter = ramAfter
	m.metrics.RAMIncrease = ramAfter - ramBefore
}

// RecordParameterInfo records the layer's parameter count and size.
// No-op after finalization.
func (c *Collector) RecordParameterInfo(m *Measurement, numParameters int64, parameterSizeMB float64) {
	if m == nil || m.finalized {
		return
	}
	m.metrics.NumParameters = numParameters
	m.metrics.ParameterSizeMB = parameterSizeMB
}

// RecordTensorMetadata records input/output tensor shapes observed at the
// layer boundary. No-op after finalization.
func (c *Collector) RecordTensorMetadata(m *Measurement, inputs, outputs []TensorShape) {
	if m == nil || m.finalized {
		return
	}
	m.metrics.InputShapes = append(m.metrics.InputShapes, inputs...)
	m.metrics.OutputShapes = append(m.metrics.OutputShapes, outputs...)
}

// RecordDevice tags the measurement with the executing device.
// No-op after finalization.
func (c *Collector) RecordDevice(m *Measurement, device string) {
	if m == nil || m.finalized {
		return
	}
	m.metrics.Device = device
}

// StopLayerMonitoring finalizes the measurement with its observed latency and
// appends it to the layer's history. Calling it twice on the same handle is a
// no-op.
func (c *Collector) StopLayerMonitoring(m *Measurement, latencyMs float64) {
	if m == nil || m.finalized {
		return
	}
	m.metrics.ForwardLatencyMs = latencyMs
	m.metrics.Timestamp = c.now().UTC().Format(time.RFC3339Nano)
	m.finalized = true

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.history[m.metrics.LayerName]; !seen {
		c.order = append(c.order, m.metrics.LayerName)
	}
	c.history[m.metrics.LayerName] = append(c.history[m.metrics.LayerName], m.metrics)
}

// Latest returns the most recent finalized record for a layer.
func (c *Collector) Latest(layerName string) (LayerMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	runs := c.history[layerName]
	if len(runs) == 0 {
		return LayerMetrics{}, false
	}
	return runs[len(runs)-1], true
}

// LatestAll returns the latest record per layer, keyed by layer name.
// This is the planning input snapshot.
func (c *Collector) LatestAll() map[string]LayerMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	latest := make(map[string]LayerMetrics, len(c.history))
	for name, runs := range c.history {
		if len(runs) > 0 {
			latest[name] = runs[len(runs)-1]
		}
	}
	return latest
}

// LayerNames returns layer names in first-finalization order.
func (c *Collector) LayerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// RunCount returns the number of finalized runs recorded for a layer.
func (c *Collector) RunCount(layerName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history[layerName])
}

// ComputePercentiles computes p50/p95/p99 forward latency across each
// layer's run history and writes them onto the layer's latest record.
// Layers with a single run keep zero percentiles.
func (c *Collector) ComputePercentiles() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, runs := range c.history {
		if len(runs) < 2 {
			continue
		}
		latencies := make([]float64, len(runs))
		for i, r := range runs {
			latencies[i] = r.ForwardLatencyMs
		}
		sort.Float64s(latencies)

		latest := &c.history[name][len(runs)-1]
		latest.P50LatencyMs = stat.Quantile(0.50, stat.Empirical, latencies, nil)
		latest.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, latencies, nil)
		latest.P99LatencyMs = stat.Quantile(0.99, stat.Empirical, latencies, nil)
	}
}

// LayerSummary is a per-layer aggregate over the full run history.
type LayerSummary struct {
	LayerType       string  `json:"layer_type"`
	LayerIndex      int     `json:"layer_index"`
	TotalRuns       int     `json:"total_runs"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	P95LatencyMs    float64 `json:"p95_latency_ms"`
	TotalVRAMMB     float64 `json:"total_vram_mb"`
	VRAMIncreaseMB  float64 `json:"vram_increase_mb"`
	NumParameters   int64   `json:"num_parameters"`
	ParameterSizeMB float64 `json:"parameter_size_mb"`
}

// Summary aggregates the run history per layer for reporting.
func (c *Collector) Summary() map[string]LayerSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary := make(map[string]LayerSummary, len(c.history))
	for name, runs := range c.history {
		if len(runs) == 0 {
			continue
		}
		latencies := make([]float64, len(runs))
		for i, r := range runs {
			latencies[i] = r.ForwardLatencyMs
		}
		latest := runs[len(runs)-1]
		summary[name] = LayerSummary{
			LayerType:       latest.LayerType,
			LayerIndex:      latest.LayerIndex,
			TotalRuns:       len(runs),
			AvgLatencyMs:    stat.Mean(latencies, nil),
			P95LatencyMs:    latest.P95LatencyMs,
			TotalVRAMMB:     float64(latest.PeakVRAMAfter) / (1024 * 1024),
			VRAMIncreaseMB:  float64(latest.VRAMIncrease) / (1024 * 1024),
			NumParameters:   latest.NumParameters,
			ParameterSizeMB: latest.ParameterSizeMB,
		}
	}
	return summary
}
