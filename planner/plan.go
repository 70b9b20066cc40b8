package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// PartitionPlan is the complete ordered stage set produced for one model,
// node set, and strategy. Immutable once returned by GeneratePlan; re-plan by
// calling GeneratePlan again. The union of all stage layer slices covers the
// profiled layer set exactly once, in layer-index order end-to-end.
type PartitionPlan struct {
	Stages []Stage `json:"stages"`

	PlanName          string   `json:"plan_name"`
	CreationTimestamp string   `json:"creation_timestamp"`
	Strategy          Strategy `json:"strategy"`

	TotalExpectedLatencyMs float64 `json:"total_expected_latency_ms"`
	LoadBalanceScore       float64 `json:"load_balance_score"` // 1 = perfectly balanced

	BottleneckStageID   *int    `json:"bottleneck_stage_id"`
	BottleneckLatencyMs float64 `json:"bottleneck_latency_ms"`
	BottleneckMemoryMB  float64 `json:"bottleneck_memory_mb"`
	BottleneckReason    string  `json:"bottleneck_reason"`

	OptimizationNotes []string `json:"optimization_notes"`
}

// recalculate derives the plan-level aggregates from the stage set: total
// latency, load-balance score, and the bottleneck stage with a templated
// reason. Called once by the planner after the strategy populates Stages.
func (p *PartitionPlan) recalculate() {
	if len(p.Stages) == 0 {
		return
	}

	latencies := make([]float64, len(p.Stages))
	for i, s := range p.Stages {
		latencies[i] = s.ExpectedLatencyMs
		p.TotalExpectedLatencyMs += s.ExpectedLatencyMs
	}

	// Load balance = 1 - coefficient of variation, clamped to [0, 1].
	// A single stage (or all-equal latencies) is trivially balanced.
	p.LoadBalanceScore = 1.0
	if len(latencies) > 1 {
		mean := stat.Mean(latencies, nil)
		if mean > 0 {
			score := 1.0 - stat.PopStdDev(latencies, nil)/mean
			p.LoadBalanceScore = clamp(score, 0, 1)
		}
	}

	// Bottleneck = argmax stage latency; lowest stage id wins ties.
	bottleneck := p.Stages[0]
	for _, s := range p.Stages[1:] {
		if s.ExpectedLatencyMs > bottleneck.ExpectedLatencyMs {
			bottleneck = s
		}
	}
	id := bottleneck.StageID
	p.BottleneckStageID = &id
	p.BottleneckLatencyMs = bottleneck.ExpectedLatencyMs
	p.BottleneckMemoryMB = bottleneck.MemoryRequiredMB
	share := 0.0
	if p.TotalExpectedLatencyMs > 0 {
		share = bottleneck.ExpectedLatencyMs / p.TotalExpectedLatencyMs * 100
	}
	p.BottleneckReason = fmt.Sprintf("stage %d on node %s carries %.1f%% of total plan latency",
		bottleneck.StageID, bottleneck.Node.NodeID, share)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetStage returns the stage with the given id.
func (p *PartitionPlan) GetStage(stageID int) (Stage, bool) {
	for _, s := range p.Stages {
		if s.StageID == stageID {
			return s, true
		}
	}
	return Stage{}, false
}

// StagesOnNode returns every stage assigned to the given node, in stage
// order.
func (p *PartitionPlan) StagesOnNode(nodeID string) []Stage {
	var stages []Stage
	for _, s := range p.Stages {
		if s.Node.NodeID == nodeID {
			stages = append(stages, s)
		}
	}
	return stages
}

// LayerOrder returns all layer names concatenated in stage order. For a
// valid plan this sequence is monotone in layer index.
func (p *PartitionPlan) LayerOrder() []string {
	var layers []string
	for _, s := range p.Stages {
		layers = append(layers, s.Layers...)
	}
	return layers
}

// Validate checks structural self-consistency and returns human-readable
// problems. An empty result means the plan is valid. Memory over-capacity is
// reported here as well as in the optimization notes.
func (p *PartitionPlan) Validate() []string {
	var problems []string
	if len(p.Stages) == 0 {
		problems = append(problems, "plan has no stages")
		return problems
	}

	seenIDs := make(map[int]bool, len(p.Stages))
	seenLayers := make(map[string]bool)
	for _, s := range p.Stages {
		if seenIDs[s.StageID] {
			problems = append(problems, fmt.Sprintf("duplicate stage id %d", s.StageID))
		}
		seenIDs[s.StageID] = true
		if len(s.Layers) == 0 {
			problems = append(problems, fmt.Sprintf("stage %d has no layers", s.StageID))
		}
		for _, layer := range s.Layers {
			if seenLayers[layer] {
				problems = append(problems, fmt.Sprintf("layer %s assigned to more than one stage", layer))
			}
			seenLayers[layer] = true
		}
		if !s.Node.CanFit(s.MemoryRequiredMB) {
			problems = append(problems, fmt.Sprintf("stage %d requires %.1fMB but node %s holds %.1fMB",
				s.StageID, s.MemoryRequiredMB, s.Node.NodeID, s.Node.MemoryCeilingMB()))
		}
	}
	return problems
}

// IsValid reports whether Validate finds no problems.
func (p *PartitionPlan) IsValid() bool {
	return len(p.Validate()) == 0
}

// ToJSON serializes the plan for deployment and dashboard collaborators.
func (p *PartitionPlan) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// PlanSummary is a compact statistics view of a plan.
type PlanSummary struct {
	TotalStages      int            `json:"total_stages"`
	TotalLayers      int            `json:"total_layers"`
	NodesUsed        int            `json:"nodes_used"`
	NodeUtilization  map[string]int `json:"node_utilization"` // node id -> stage count
	TotalLatencyMs   float64        `json:"total_latency_ms"`
	LoadBalanceScore float64        `json:"load_balance_score"`
	BottleneckStage  *int           `json:"bottleneck_stage_id"`
}

// Summary computes plan-level statistics.
func (p *PartitionPlan) Summary() PlanSummary {
	utilization := make(map[string]int)
	totalLayers := 0
	for _, s := range p.Stages {
		utilization[s.Node.NodeID]++
		totalLayers += len(s.Layers)
	}
	return PlanSummary{
		TotalStages:      len(p.Stages),
		TotalLayers:      totalLayers,
		NodesUsed:        len(utilization),
		NodeUtilization:  utilization,
		TotalLatencyMs:   p.TotalExpectedLatencyMs,
		LoadBalanceScore: p.LoadBalanceScore,
		BottleneckStage:  p.BottleneckStageID,
	}
}

// Visualize renders a plain-text breakdown of the plan for terminal output.
func (p *PartitionPlan) Visualize() string {
	var b strings.Builder
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "PARTITION PLAN: %s\n", p.PlanName)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Strategy: %s\n", p.Strategy)
	fmt.Fprintf(&b, "Total stages: %d\n", len(p.Stages))
	fmt.Fprintf(&b, "Total latency: %.1fms\n", p.TotalExpectedLatencyMs)
	fmt.Fprintf(&b, "Load balance score: %.2f\n", p.LoadBalanceScore)
	if p.BottleneckStageID != nil {
		fmt.Fprintf(&b, "Bottleneck: stage %d at %.1fms\n", *p.BottleneckStageID, p.BottleneckLatencyMs)
	}
	fmt.Fprintln(&b)

	for _, s := range p.Stages {
		fmt.Fprintf(&b, "Stage %d:\n", s.StageID)
		fmt.Fprintf(&b, "  Node: %s (%s)\n", s.Node.NodeID, s.Node.DeviceType)
		fmt.Fprintf(&b, "  Latency: %.1fms\n", s.ExpectedLatencyMs)
		fmt.Fprintf(&b, "  Memory: %.1fMB\n", s.MemoryRequiredMB)
		fmt.Fprintf(&b, "  Parameters: %d\n", s.NumParameters)
		if len(s.Layers) <= 5 {
			fmt.Fprintf(&b, "  Layers: %s\n", strings.Join(s.Layers, ", "))
		} else {
			fmt.Fprintf(&b, "  Layers: %s... (+%d more)\n",
				strings.Join(s.Layers[:3], ", "), len(s.Layers)-3)
		}
		fmt.Fprintf(&b, "  Rationale: %s\n", s.Rationale)
		if len(s.Tags) > 0 {
			fmt.Fprintf(&b, "  Tags: %s\n", strings.Join(s.Tags, ", "))
		}
		fmt.Fprintln(&b)
	}

	if len(p.OptimizationNotes) > 0 {
		fmt.Fprintln(&b, "Optimization notes:")
		for _, note := range p.OptimizationNotes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}
	fmt.Fprintln(&b, rule)
	return b.String()
}
