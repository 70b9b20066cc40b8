package planner

import (
	"fmt"

	"github.com/shardplan/shardplan/profiler"
)

// memoryHeadroom is the fraction of a node's memory ceiling a stage may
// occupy before the packer advances to the next node.
const memoryHeadroom = 0.9

// planMemoryAware walks layers in index order against memory-ranked nodes
// (memory-rich first), closing a stage when the next layer would exceed 90%
// of the current node's ceiling and advancing to the next node. A single
// layer larger than every ceiling still gets a stage; the over-capacity
// condition is flagged through the optimization notes.
func (p *ExecutionPlanner) planMemoryAware(ordered []profiler.LayerMetrics, ranked []VirtualNode) []Stage {
	byMemory := rankNodesByMemory(ranked)

	var stages []Stage
	var cur stageAccum
	nodeIdx := 0

	closeStage := func() {
		node := byMemory[nodeIdx%len(byMemory)]
		stages = append(stages, Stage{
			StageID:           len(stages),
			Node:              node,
			Layers:            cur.layers,
			ExpectedLatencyMs: cur.latencyMs,
			MemoryRequiredMB:  cur.memoryMB,
			NumParameters:     cur.params,
			Rationale: fmt.Sprintf("memory-aware stage sized to %.0f%% of node %s ceiling",
				memoryHeadroom*100, node.NodeID),
		})
		nodeIdx++
		cur = stageAccum{}
	}

	for _, m := range ordered {
		ceiling := byMemory[nodeIdx%len(byMemory)].MemoryCeilingMB()
		if !cur.empty() && cur.memoryMB+m.MemoryRequiredMB() > ceiling*memoryHeadroom {
			closeStage()
		}
		cur.add(m)
	}
	if !cur.empty() {
		closeStage()
	}
	return stages
}
