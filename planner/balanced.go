package planner

import (
	"fmt"

	"github.com/shardplan/shardplan/profiler"
)

// Soft and hard multipliers around the per-stage latency target used by the
// balanced packer.
const (
	softCloseFactor = 0.7
	hardCloseFactor = 1.3
)

// balancedPack packs layers around a latency target. A stage closes when the
// next layer would push it past hardCloseFactor*target or past the per-stage
// VRAM budget. While fewer than softLimit stages have been closed, a stage
// holding softCloseFactor*target already closes early.
func (p *ExecutionPlanner) balancedPack(layers []profiler.LayerMetrics, target float64, softLimit int) []stageAccum {
	maxMemoryMB := p.constraints.MaxVRAMPerStageGB * 1024
	return packSequential(layers, func(cur *stageAccum, next profiler.LayerMetrics, built int) bool {
		if cur.latencyMs+next.ForwardLatencyMs > target*hardCloseFactor {
			return true
		}
		if cur.memoryMB+next.MemoryRequiredMB() > maxMemoryMB {
			return true
		}
		if built < softLimit && cur.latencyMs >= target*softCloseFactor {
			return true
		}
		return false
	})
}

// planBalanced distributes latency evenly: the target is total latency over
// the wanted stage count, and stages are assigned round-robin over the
// ranked nodes.
func (p *ExecutionPlanner) planBalanced(ordered []profiler.LayerMetrics, ranked []VirtualNode) []Stage {
	numStages := len(ranked)
	if p.constraints.MaxStages < numStages {
		numStages = p.constraints.MaxStages
	}
	target := totalLatency(ordered) / float64(numStages)

	packed := p.balancedPack(ordered, target, numStages-1)
	stages := make([]Stage, 0, len(packed))
	for i, acc := range packed {
		stages = append(stages, Stage{
			StageID:           i,
			Node:              ranked[i%len(ranked)],
			Layers:            acc.layers,
			ExpectedLatencyMs: acc.latencyMs,
			MemoryRequiredMB:  acc.memoryMB,
			NumParameters:     acc.params,
			Rationale:         fmt.Sprintf("balanced stage targeting %.0fms latency", target),
		})
	}
	return stages
}
