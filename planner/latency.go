package planner

import (
	"fmt"

	"github.com/shardplan/shardplan/profiler"
)

// planLatencyOptimized caps each stage at the constraint's maximum stage
// latency and hands stages to nodes ranked purely by compute score, fastest
// first, later stages sharing the slowest node once the ranking is
// exhausted.
func (p *ExecutionPlanner) planLatencyOptimized(ordered []profiler.LayerMetrics, ranked []VirtualNode) []Stage {
	bySpeed := rankNodesBySpeed(ranked)
	limit := p.constraints.MaxStageLatencyMs

	packed := packSequential(ordered, func(cur *stageAccum, next profiler.LayerMetrics, _ int) bool {
		return cur.latencyMs+next.ForwardLatencyMs > limit
	})

	stages := make([]Stage, 0, len(packed))
	for i, acc := range packed {
		stages = append(stages, Stage{
			StageID:           i,
			Node:              bySpeed[min(i, len(bySpeed)-1)],
			Layers:            acc.layers,
			ExpectedLatencyMs: acc.latencyMs,
			MemoryRequiredMB:  acc.memoryMB,
			NumParameters:     acc.params,
			Rationale:         fmt.Sprintf("latency-capped stage (limit %.0fms)", limit),
		})
	}
	return stages
}
