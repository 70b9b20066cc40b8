package planner

import "fmt"

// PlanningConstraints bounds and biases the planner. Caller-supplied and
// validated once at planner construction; read-only afterwards.
type PlanningConstraints struct {
	// Memory budgets.
	MaxVRAMPerStageGB float64 `json:"max_vram_per_stage_gb" yaml:"max_vram_per_stage_gb" toml:"max_vram_per_stage_gb"`
	MaxRAMPerStageGB  float64 `json:"max_ram_per_stage_gb" yaml:"max_ram_per_stage_gb" toml:"max_ram_per_stage_gb"`

	// Latency budgets.
	MaxStageLatencyMs    float64 `json:"max_stage_latency_ms" yaml:"max_stage_latency_ms" toml:"max_stage_latency_ms"`
	TargetStageLatencyMs float64 `json:"target_stage_latency_ms" yaml:"target_stage_latency_ms" toml:"target_stage_latency_ms"`

	// Balance.
	MaxLatencyImbalancePct float64 `json:"max_latency_imbalance_pct" yaml:"max_latency_imbalance_pct" toml:"max_latency_imbalance_pct"`

	PreferFastDevices        bool `json:"prefer_fast_devices" yaml:"prefer_fast_devices" toml:"prefer_fast_devices"`
	MinStages                int  `json:"min_stages" yaml:"min_stages" toml:"min_stages"`
	MaxStages                int  `json:"max_stages" yaml:"max_stages" toml:"max_stages"`
	AllowCrossNodeDuplicates bool `json:"allow_cross_node_duplicates" yaml:"allow_cross_node_duplicates" toml:"allow_cross_node_duplicates"`
}

// DefaultConstraints returns the stock planning constraints.
func DefaultConstraints() PlanningConstraints {
	return PlanningConstraints{
		MaxVRAMPerStageGB:      24.0,
		MaxRAMPerStageGB:       64.0,
		MaxStageLatencyMs:      1000.0,
		TargetStageLatencyMs:   500.0,
		MaxLatencyImbalancePct: 30.0,
		PreferFastDevices:      true,
		MinStages:              1,
		MaxStages:              8,
	}
}

// Validate checks internal consistency.
func (c PlanningConstraints) Validate() error {
	if c.MinStages < 1 {
		return fmt.Errorf("min_stages must be at least 1, got %d", c.MinStages)
	}
	if c.MaxStages < c.MinStages {
		return fmt.Errorf("max_stages (%d) must be >= min_stages (%d)", c.MaxStages, c.MinStages)
	}
	if c.MaxVRAMPerStageGB <= 0 {
		return fmt.Errorf("max_vram_per_stage_gb must be positive, got %g", c.MaxVRAMPerStageGB)
	}
	if c.MaxRAMPerStageGB <= 0 {
		return fmt.Errorf("max_ram_per_stage_gb must be positive, got %g", c.MaxRAMPerStageGB)
	}
	if c.MaxStageLatencyMs <= 0 {
		return fmt.Errorf("max_stage_latency_ms must be positive, got %g", c.MaxStageLatencyMs)
	}
	if c.TargetStageLatencyMs <= 0 {
		return fmt.Errorf("target_stage_latency_ms must be positive, got %g", c.TargetStageLatencyMs)
	}
	if c.MaxLatencyImbalancePct < 0 {
		return fmt.Errorf("max_latency_imbalance_pct must be non-negative, got %g", c.MaxLatencyImbalancePct)
	}
	return nil
}
