package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/shardplan/shardplan/profiler"
)

// planBottleneckFirst gives the slowest layers solo stages on the fastest
// nodes, then balanced-packs the segments between them. Node assignment is a
// preference only: the final stage sequence stays monotone in layer index.
func (p *ExecutionPlanner) planBottleneckFirst(ordered []profiler.LayerMetrics, ranked []VirtualNode) []Stage {
	// Top 20% of layers by latency; ties resolved toward earlier layers.
	bySlowness := make([]profiler.LayerMetrics, len(ordered))
	copy(bySlowness, ordered)
	sort.Slice(bySlowness, func(i, j int) bool {
		if bySlowness[i].ForwardLatencyMs != bySlowness[j].ForwardLatencyMs {
			return bySlowness[i].ForwardLatencyMs > bySlowness[j].ForwardLatencyMs
		}
		return bySlowness[i].LayerIndex < bySlowness[j].LayerIndex
	})

	count := int(float64(len(ordered)) * 0.2)
	slownessRank := make(map[string]int, count)
	remainingTotal := totalLatency(ordered)
	for i := 0; i < count; i++ {
		slownessRank[bySlowness[i].LayerName] = i
		remainingTotal -= bySlowness[i].ForwardLatencyMs
	}

	numStages := len(ranked)
	if p.constraints.MaxStages < numStages {
		numStages = p.constraints.MaxStages
	}
	target := remainingTotal / float64(numStages)

	bySpeed := rankNodesBySpeed(ranked)
	var stages []Stage
	var segment []profiler.LayerMetrics
	segNode := 0

	flushSegment := func() {
		if len(segment) == 0 {
			return
		}
		for _, acc := range p.balancedPack(segment, target, math.MaxInt) {
			stages = append(stages, Stage{
				Node:              ranked[segNode%len(ranked)],
				Layers:            acc.layers,
				ExpectedLatencyMs: acc.latencyMs,
				MemoryRequiredMB:  acc.memoryMB,
				NumParameters:     acc.params,
				Rationale:         fmt.Sprintf("balanced stage packed around bottlenecks (target %.0fms)", target),
			})
			segNode++
		}
		segment = segment[:0]
	}

	for _, m := range ordered {
		rank, isBottleneck := slownessRank[m.LayerName]
		if !isBottleneck {
			segment = append(segment, m)
			continue
		}
		flushSegment()
		node := bySpeed[min(rank, len(bySpeed)-1)]
		stages = append(stages, Stage{
			Node:              node,
			Layers:            []string{m.LayerName},
			ExpectedLatencyMs: m.ForwardLatencyMs,
			MemoryRequiredMB:  m.MemoryRequiredMB(),
			NumParameters:     m.NumParameters,
			Rationale:         fmt.Sprintf("bottleneck layer pinned to fastest available node (score=%.0f)", node.ComputeScore),
			Tags:              []string{TagBottleneck},
		})
	}
	flushSegment()

	// Stages emerged in layer-index order; renumber them densely.
	for i := range stages {
		stages[i].StageID = i
	}
	return stages
}
