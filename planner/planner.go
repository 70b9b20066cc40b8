package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/shardplan/shardplan/profiler"
)

// Strategy selects the partitioning heuristic.
type Strategy string

const (
	StrategyBalanced         Strategy = "balanced"
	StrategyBottleneckFirst  Strategy = "bottleneck_first"
	StrategyMemoryAware      Strategy = "memory_aware"
	StrategyLatencyOptimized Strategy = "latency_optimized"
)

func (s Strategy) String() string { return string(s) }

// ParseStrategy converts a strategy name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyBalanced, StrategyBottleneckFirst, StrategyMemoryAware, StrategyLatencyOptimized:
		return Strategy(name), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want balanced, bottleneck_first, memory_aware, or latency_optimized)", name)
}

// ExecutionPlanner turns per-layer metrics into a PartitionPlan. It is a
// pure, deterministic function of its inputs: identical metrics, nodes,
// strategy, and constraints produce an identical plan (under a fixed clock).
//
// Every strategy walks layers strictly in layer-index order. Latency and
// memory figures only ever choose cut points and node assignment; reordering
// layers would break data dependencies and make the plan unexecutable.
type ExecutionPlanner struct {
	metrics     map[string]profiler.LayerMetrics // latest record per layer
	strategy    Strategy
	constraints PlanningConstraints

	now func() time.Time
}

// NewExecutionPlanner builds a planner over a "latest record per layer"
// snapshot. A nil constraints pointer selects DefaultConstraints. The
// snapshot is copied; later collector activity does not leak in.
func NewExecutionPlanner(metrics map[string]profiler.LayerMetrics, strategy Strategy, constraints *PlanningConstraints) (*ExecutionPlanner, error) {
	cons := DefaultConstraints()
	if constraints != nil {
		cons = *constraints
	}
	if err := cons.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planning constraints: %w", err)
	}
	snapshot := make(map[string]profiler.LayerMetrics, len(metrics))
	for name, m := range metrics {
		snapshot[name] = m
	}
	return &ExecutionPlanner{
		metrics:     snapshot,
		strategy:    strategy,
		constraints: cons,
		now:         time.Now,
	}, nil
}

// FromCollector builds a planner over a collector's latest-per-layer view.
func FromCollector(c *profiler.Collector, strategy Strategy, constraints *PlanningConstraints) (*ExecutionPlanner, error) {
	return NewExecutionPlanner(c.LatestAll(), strategy, constraints)
}

// GeneratePlan produces a complete, self-consistent partition plan or a
// typed precondition error. It never returns a partial plan: constraint
// infeasibility is reported through optimization notes and stage tags.
func (p *ExecutionPlanner) GeneratePlan(nodes []VirtualNode, modelName string) (*PartitionPlan, error) {
	if modelName == "" {
		modelName = "unknown_model"
	}
	if len(nodes) == 0 {
		return nil, NoAvailableNodesError{ModelName: modelName}
	}
	if len(p.metrics) == 0 {
		return nil, NoMetricsError{ModelName: modelName}
	}

	logrus.Infof("generating %s partition plan for %s: %d layers across %d nodes",
		p.strategy, modelName, len(p.metrics), len(nodes))

	ranked := RankNodes(nodes)
	ordered := p.orderedLayers()

	var stages []Stage
	switch p.strategy {
	case StrategyBottleneckFirst:
		stages = p.planBottleneckFirst(ordered, ranked)
	case StrategyMemoryAware:
		stages = p.planMemoryAware(ordered, ranked)
	case StrategyLatencyOptimized:
		stages = p.planLatencyOptimized(ordered, ranked)
	default:
		stages = p.planBalanced(ordered, ranked)
	}

	plan := &PartitionPlan{
		Stages:            stages,
		PlanName:          fmt.Sprintf("%s_%s_plan", modelName, p.strategy),
		CreationTimestamp: p.now().Format("20060102_150405"),
		Strategy:          p.strategy,
	}
	plan.recalculate()
	p.addOptimizationNotes(plan, len(nodes))

	logrus.Infof("plan %s: %d stages, %.1fms expected latency, balance score %.2f",
		plan.PlanName, len(plan.Stages), plan.TotalExpectedLatencyMs, plan.LoadBalanceScore)
	return plan, nil
}

// orderedLayers returns the metric snapshot sorted by layer index, layer
// name breaking ties for determinism.
func (p *ExecutionPlanner) orderedLayers() []profiler.LayerMetrics {
	layers := make([]profiler.LayerMetrics, 0, len(p.metrics))
	for _, m := range p.metrics {
		layers = append(layers, m)
	}
	sort.Slice(layers, func(i, j int) bool {
		if layers[i].LayerIndex != layers[j].LayerIndex {
			return layers[i].LayerIndex < layers[j].LayerIndex
		}
		return layers[i].LayerName < layers[j].LayerName
	})
	return layers
}

func totalLatency(layers []profiler.LayerMetrics) float64 {
	total := 0.0
	for _, m := range layers {
		total += m.ForwardLatencyMs
	}
	return total
}

// stageAccum accumulates one stage's layers during sequential packing.
type stageAccum struct {
	layers    []string
	latencyMs float64
	memoryMB  float64
	params    int64
}

func (a *stageAccum) add(m profiler.LayerMetrics) {
	a.layers = append(a.layers, m.LayerName)
	a.latencyMs += m.ForwardLatencyMs
	a.memoryMB += m.MemoryRequiredMB()
	a.params += m.NumParameters
}

func (a *stageAccum) empty() bool { return len(a.layers) == 0 }

// cutFunc decides whether to close the current (non-empty) stage before
// adding the next layer; built counts stages already closed in this pack.
type cutFunc func(cur *stageAccum, next profiler.LayerMetrics, built int) bool

// packSequential is the shared greedy bin-packing primitive. It walks layers
// in the given order (every caller supplies layer-index order) and
// accumulates into the current stage until the cut function fires.
func packSequential(layers []profiler.LayerMetrics, cut cutFunc) []stageAccum {
	var packed []stageAccum
	var cur stageAccum
	for _, m := range layers {
		if !cur.empty() && cut(&cur, m, len(packed)) {
			packed = append(packed, cur)
			cur = stageAccum{}
		}
		cur.add(m)
	}
	if !cur.empty() {
		packed = append(packed, cur)
	}
	return packed
}

// addOptimizationNotes appends the human-readable planning rationale and
// flags constraint infeasibility as a warning, never an error.
func (p *ExecutionPlanner) addOptimizationNotes(plan *PartitionPlan, totalNodes int) {
	notes := &plan.OptimizationNotes
	*notes = append(*notes, fmt.Sprintf("strategy: %s", p.strategy))
	*notes = append(*notes, fmt.Sprintf("layers partitioned: %d", len(p.metrics)))

	totalMemory := 0.0
	latencies := make([]float64, len(plan.Stages))
	for i, s := range plan.Stages {
		totalMemory += s.MemoryRequiredMB
		latencies[i] = s.ExpectedLatencyMs
	}
	if len(plan.Stages) > 0 {
		*notes = append(*notes, fmt.Sprintf("average stage memory: %.1fMB", totalMemory/float64(len(plan.Stages))))
		*notes = append(*notes, fmt.Sprintf("stage latency stddev: %.1fms", stat.PopStdDev(latencies, nil)))
	}

	if plan.LoadBalanceScore < 0.7 {
		*notes = append(*notes, fmt.Sprintf("load imbalance detected (score %.2f); consider a different strategy", plan.LoadBalanceScore))
	}

	*notes = append(*notes, fmt.Sprintf("nodes utilized: %d of %d", plan.Summary().NodesUsed, totalNodes))

	// Infeasibility: a stage no node memory ceiling can hold is still
	// emitted, tagged, and flagged so the caller can react.
	for i := range plan.Stages {
		s := &plan.Stages[i]
		if !s.Node.CanFit(s.MemoryRequiredMB) {
			if !s.HasTag(TagOverCapacity) {
				s.Tags = append(s.Tags, TagOverCapacity)
			}
			*notes = append(*notes, fmt.Sprintf(
				"stage %d requires %.1fMB but node %s holds %.1fMB; plan exceeds capacity, consider more or larger nodes",
				s.StageID, s.MemoryRequiredMB, s.Node.NodeID, s.Node.MemoryCeilingMB()))
			logrus.Warnf("stage %d exceeds memory ceiling of node %s", s.StageID, s.Node.NodeID)
		}
	}

	if plan.BottleneckStageID != nil {
		*notes = append(*notes, fmt.Sprintf("bottleneck: stage %d on %s (%.1fms)",
			*plan.BottleneckStageID, plan.Stages[indexOfStage(plan, *plan.BottleneckStageID)].Node.NodeID,
			plan.BottleneckLatencyMs))
		if plan.BottleneckLatencyMs > plan.TotalExpectedLatencyMs*0.3 {
			*notes = append(*notes, "bottleneck exceeds 30% of total latency; consider the bottleneck_first strategy")
		}
	}
}

func indexOfStage(plan *PartitionPlan, stageID int) int {
	for i, s := range plan.Stages {
		if s.StageID == stageID {
			return i
		}
	}
	return 0
}
