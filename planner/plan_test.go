package planner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func planFromStages(stages ...Stage) *PartitionPlan {
	plan := &PartitionPlan{
		PlanName: "test_plan",
		Strategy: StrategyBalanced,
		Stages:   stages,
	}
	plan.recalculate()
	return plan
}

func testStage(id int, nodeID string, latencyMs, memoryMB float64, layers ...string) Stage {
	return Stage{
		StageID:           id,
		Node:              gpuNode(nodeID, 100, 24),
		Layers:            layers,
		ExpectedLatencyMs: latencyMs,
		MemoryRequiredMB:  memoryMB,
	}
}

func TestRecalculate_SingleStageIsTriviallyBalanced(t *testing.T) {
	plan := planFromStages(testStage(0, "gpu-0", 50, 100, "layer.0"))

	assert.Equal(t, 1.0, plan.LoadBalanceScore)
	assert.Equal(t, 50.0, plan.TotalExpectedLatencyMs)
	if assert.NotNil(t, plan.BottleneckStageID) {
		assert.Equal(t, 0, *plan.BottleneckStageID)
	}
}

func TestRecalculate_EqualStagesScoreOne(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 30, 100, "layer.0"),
		testStage(1, "gpu-1", 30, 100, "layer.1"),
		testStage(2, "gpu-0", 30, 100, "layer.2"),
	)

	assert.Equal(t, 1.0, plan.LoadBalanceScore)
	assert.Equal(t, 90.0, plan.TotalExpectedLatencyMs)
}

func TestRecalculate_SkewedStagesScoreBelowOne(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 5, 100, "layer.0"),
		testStage(1, "gpu-1", 500, 100, "layer.1"),
	)

	assert.Less(t, plan.LoadBalanceScore, 1.0)
	assert.GreaterOrEqual(t, plan.LoadBalanceScore, 0.0)
}

func TestRecalculate_BottleneckTiePicksLowestStageID(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 10, 100, "layer.0"),
		testStage(1, "gpu-1", 40, 100, "layer.1"),
		testStage(2, "gpu-0", 40, 100, "layer.2"),
	)

	if assert.NotNil(t, plan.BottleneckStageID) {
		assert.Equal(t, 1, *plan.BottleneckStageID)
	}
	assert.Equal(t, 40.0, plan.BottleneckLatencyMs)
	assert.Contains(t, plan.BottleneckReason, "stage 1 on node gpu-1")
}

func TestValidate_CleanPlanHasNoProblems(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 10, 100, "layer.0", "layer.1"),
		testStage(1, "gpu-1", 10, 100, "layer.2"),
	)

	assert.Empty(t, plan.Validate())
	assert.True(t, plan.IsValid())
}

func TestValidate_ReportsStructuralProblems(t *testing.T) {
	plan := &PartitionPlan{Stages: []Stage{
		testStage(0, "gpu-0", 10, 100, "layer.0", "layer.0"),
		testStage(0, "gpu-1", 10, 100),
	}}

	problems := plan.Validate()
	assert.False(t, plan.IsValid())

	joined := strings.Join(problems, "\n")
	assert.Contains(t, joined, "duplicate stage id 0")
	assert.Contains(t, joined, "assigned to more than one stage")
	assert.Contains(t, joined, "stage 0 has no layers")
}

func TestValidate_EmptyPlan(t *testing.T) {
	plan := &PartitionPlan{}
	assert.Equal(t, []string{"plan has no stages"}, plan.Validate())
}

func TestValidate_ReportsMemoryOverCapacity(t *testing.T) {
	stage := testStage(0, "gpu-0", 10, 100, "layer.0")
	stage.Node = gpuNode("gpu-tiny", 100, 1) // 1024 MB ceiling
	stage.MemoryRequiredMB = 5000
	plan := planFromStages(stage)

	problems := plan.Validate()
	if assert.Len(t, problems, 1) {
		assert.Contains(t, problems[0], "gpu-tiny")
	}
}

func TestStagesOnNode(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 10, 100, "layer.0"),
		testStage(1, "gpu-1", 10, 100, "layer.1"),
		testStage(2, "gpu-0", 10, 100, "layer.2"),
	)

	onZero := plan.StagesOnNode("gpu-0")
	if assert.Len(t, onZero, 2) {
		assert.Equal(t, 0, onZero[0].StageID)
		assert.Equal(t, 2, onZero[1].StageID)
	}
	assert.Empty(t, plan.StagesOnNode("missing"))
}

func TestGetStage(t *testing.T) {
	plan := planFromStages(testStage(0, "gpu-0", 10, 100, "layer.0"))

	s, ok := plan.GetStage(0)
	assert.True(t, ok)
	assert.Equal(t, []string{"layer.0"}, s.Layers)

	_, ok = plan.GetStage(99)
	assert.False(t, ok)
}

func TestSummary_CountsStagesLayersAndNodes(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 10, 100, "layer.0", "layer.1"),
		testStage(1, "gpu-1", 20, 100, "layer.2"),
		testStage(2, "gpu-0", 10, 100, "layer.3"),
	)

	summary := plan.Summary()
	assert.Equal(t, 3, summary.TotalStages)
	assert.Equal(t, 4, summary.TotalLayers)
	assert.Equal(t, 2, summary.NodesUsed)
	assert.Equal(t, map[string]int{"gpu-0": 2, "gpu-1": 1}, summary.NodeUtilization)
	assert.Equal(t, 40.0, summary.TotalLatencyMs)
}

func TestToJSON_RoundTripsThroughDeploymentFormat(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 10, 100, "layer.0"),
		testStage(1, "gpu-1", 30, 200, "layer.1"),
	)
	plan.OptimizationNotes = []string{"strategy: balanced"}

	raw, err := plan.ToJSON()
	assert.NoError(t, err)

	var decoded PartitionPlan
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, plan.PlanName, decoded.PlanName)
	assert.Equal(t, plan.TotalExpectedLatencyMs, decoded.TotalExpectedLatencyMs)
	assert.Equal(t, plan.LayerOrder(), decoded.LayerOrder())
	if assert.NotNil(t, decoded.BottleneckStageID) {
		assert.Equal(t, *plan.BottleneckStageID, *decoded.BottleneckStageID)
	}

	// Field names are a wire contract with the dashboard and deployer.
	var fields map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{
		"stages", "plan_name", "creation_timestamp", "strategy",
		"total_expected_latency_ms", "load_balance_score",
		"bottleneck_stage_id", "optimization_notes",
	} {
		assert.Contains(t, fields, key)
	}
}

func TestVisualize_RendersStagesAndNotes(t *testing.T) {
	plan := planFromStages(
		testStage(0, "gpu-0", 10, 100, "layer.0"),
		testStage(1, "gpu-1", 30, 200, "layer.1"),
	)
	plan.PlanName = "demo_balanced_plan"
	plan.OptimizationNotes = []string{"strategy: balanced"}

	out := plan.Visualize()
	assert.Contains(t, out, "PARTITION PLAN: demo_balanced_plan")
	assert.Contains(t, out, "Stage 0:")
	assert.Contains(t, out, "Stage 1:")
	assert.Contains(t, out, "Node: gpu-0 (gpu)")
	assert.Contains(t, out, "Bottleneck: stage 1 at 30.0ms")
	assert.Contains(t, out, "Optimization notes:")
}

func TestVisualize_TruncatesLongLayerLists(t *testing.T) {
	layers := []string{"l0", "l1", "l2", "l3", "l4", "l5", "l6"}
	plan := planFromStages(testStage(0, "gpu-0", 10, 100, layers...))

	out := plan.Visualize()
	assert.Contains(t, out, "l0, l1, l2... (+4 more)")
	assert.NotContains(t, out, "l6")
}
