package profiler

// TensorShape describes one input or output tensor observed at a layer
// boundary. Recorded opportunistically by the host runtime via
// Collector.RecordTensorMetadata; planning never depends on it.
type TensorShape struct {
	Shape []int  `json:"shape"`
	DType string `json:"dtype,omitempty"`
}

// LayerMetrics is one immutable measurement of one layer execution.
// LayerIndex is the authoritative execution order: unique per LayerName,
// assigned once at instrumentation-attach time from a deterministic graph
// traversal. It is never derived from latency.
type LayerMetrics struct {
	LayerName  string `json:"layer_name"`
	LayerType  string `json:"layer_type"`
	LayerIndex int    `json:"layer_index"`

	// Latency (milliseconds). Percentiles are computed across a layer's
	// run history by Collector.ComputePercentiles and written onto the
	// latest record only.
	ForwardLatencyMs float64 `json:"forward_latency_ms"`
	P50LatencyMs     float64 `json:"p50_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	P99LatencyMs     float64 `json:"p99_latency_ms"`

	// Memory (bytes).
	PeakVRAMBefore int64 `json:"peak_vram_before"`
	PeakVRAMAfter  int64 `json:"peak_vram_after"`
	VRAMIncrease   int64 `json:"vram_increase"`
	PeakRAMBefore  int64 `json:"peak_ram_before"`
	PeakRAMAfter   int64 `json:"peak_ram_after"`
	RAMIncrease    int64 `json:"ram_increase"`

	// Tensor and parameter metadata.
	InputShapes     []TensorShape `json:"input_shapes,omitempty"`
	OutputShapes    []TensorShape `json:"output_shapes,omitempty"`
	NumParameters   int64         `json:"num_parameters"`
	ParameterSizeMB float64       `json:"parameter_size_mb"`

	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"`
}

// MemoryRequiredMB returns the layer's planning-relevant memory footprint
// in megabytes, derived from the post-invoke VRAM snapshot.
func (m LayerMetrics) MemoryRequiredMB() float64 {
	return float64(m.PeakVRAMAfter) / (1024 * 1024)
}
