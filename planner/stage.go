package planner

// TagBottleneck marks a solo stage created for a bottleneck layer.
// TagOverCapacity marks a stage whose memory requirement exceeds its node's
// ceiling (constraint infeasibility, flagged but not fatal).
const (
	TagBottleneck   = "bottleneck"
	TagOverCapacity = "over-capacity"
)

// Stage is a contiguous, ordered run of layers bound to one node. Stage ids
// are dense and ordered: stage i executes strictly before stage i+1, and the
// layer slice is ordered by layer index.
type Stage struct {
	StageID int         `json:"stage_id"`
	Node    VirtualNode `json:"node"`
	Layers  []string    `json:"layers"`

	ExpectedLatencyMs float64 `json:"expected_latency_ms"`
	MemoryRequiredMB  float64 `json:"memory_required_mb"`
	NumParameters     int64   `json:"num_parameters"`

	Rationale string   `json:"rationale"`
	Tags      []string `json:"tags,omitempty"`
}

// HasTag reports whether the stage carries the given tag.
func (s Stage) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BottleneckScore is a combined latency/memory pressure figure; higher means
// the stage is more likely to be the pipeline bottleneck.
func (s Stage) BottleneckScore() float64 {
	latencyScore := s.ExpectedLatencyMs / 1000.0
	memoryScore := s.MemoryRequiredMB / (1024 * 1024)
	return latencyScore*0.7 + memoryScore*0.3
}
