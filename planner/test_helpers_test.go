package planner

import (
	"fmt"
	"time"

	"github.com/shardplan/shardplan/profiler"
)

// layerSpec describes one profiled layer for test fixtures.
type layerSpec struct {
	latencyMs float64
	memoryMB  float64
}

// makeMetrics builds a latest-per-layer snapshot with names layer.0,
// layer.1, ... whose index matches their position.
func makeMetrics(specs ...layerSpec) map[string]profiler.LayerMetrics {
	metrics := make(map[string]profiler.LayerMetrics, len(specs))
	for i, spec := range specs {
		name := fmt.Sprintf("layer.%d", i)
		metrics[name] = profiler.LayerMetrics{
			LayerName:        name,
			LayerType:        "TransformerBlock",
			LayerIndex:       i,
			ForwardLatencyMs: spec.latencyMs,
			PeakVRAMAfter:    int64(spec.memoryMB * 1024 * 1024),
			NumParameters:    1_000_000,
			Device:           "cuda:0",
		}
	}
	return metrics
}

func uniformMetrics(count int, latencyMs, memoryMB float64) map[string]profiler.LayerMetrics {
	specs := make([]layerSpec, count)
	for i := range specs {
		specs[i] = layerSpec{latencyMs: latencyMs, memoryMB: memoryMB}
	}
	return makeMetrics(specs...)
}

func gpuNode(id string, score, vramGB float64) VirtualNode {
	return VirtualNode{NodeID: id, DeviceType: DeviceGPU, ComputeScore: score, VRAMGB: vramGB, RAMGB: 64}
}

func cpuNode(id string, score, ramGB float64) VirtualNode {
	return VirtualNode{NodeID: id, DeviceType: DeviceCPU, ComputeScore: score, RAMGB: ramGB}
}

// newTestPlanner wires a planner with a fixed clock so plans are
// byte-reproducible in tests.
func newTestPlanner(t interface{ Fatalf(string, ...any) }, metrics map[string]profiler.LayerMetrics, strategy Strategy, constraints *PlanningConstraints) *ExecutionPlanner {
	p, err := NewExecutionPlanner(metrics, strategy, constraints)
	if err != nil {
		t.Fatalf("NewExecutionPlanner: %v", err)
	}
	p.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return p
}

var allStrategies = []Strategy{
	StrategyBalanced,
	StrategyBottleneckFirst,
	StrategyMemoryAware,
	StrategyLatencyOptimized,
}
