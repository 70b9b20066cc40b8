package planner

import "sort"

// DeviceType classifies a node's compute device.
type DeviceType string

const (
	DeviceGPU  DeviceType = "gpu"
	DeviceIGPU DeviceType = "igpu" // integrated GPU
	DeviceCPU  DeviceType = "cpu"
)

// Valid reports whether d is a known device type.
func (d DeviceType) Valid() bool {
	switch d {
	case DeviceGPU, DeviceIGPU, DeviceCPU:
		return true
	}
	return false
}

// Priority orders device classes for node ranking: gpu > igpu > cpu.
func (d DeviceType) Priority() int {
	switch d {
	case DeviceGPU:
		return 3
	case DeviceIGPU:
		return 2
	case DeviceCPU:
		return 1
	}
	return 0
}

// VirtualNode is a static hardware description of one pipeline node.
// Immutable and externally supplied; the planner never mutates it.
type VirtualNode struct {
	NodeID       string     `json:"node_id" yaml:"node_id"`
	DeviceType   DeviceType `json:"device_type" yaml:"device_type"`
	ComputeScore float64    `json:"compute_score" yaml:"compute_score"` // relative speed, higher is faster
	VRAMGB       float64    `json:"vram_gb" yaml:"vram_gb"`
	RAMGB        float64    `json:"ram_gb" yaml:"ram_gb"`

	MemoryBandwidthGBs float64 `json:"memory_bandwidth_gbs,omitempty" yaml:"memory_bandwidth_gbs"`
	NetworkLatencyMs   float64 `json:"network_latency_ms,omitempty" yaml:"network_latency_ms"`
	BandwidthMbps      float64 `json:"bandwidth_mbps,omitempty" yaml:"bandwidth_mbps"`
}

// MemoryCeilingMB returns the node's usable memory budget in megabytes:
// VRAM when the node has any, host RAM otherwise.
func (n VirtualNode) MemoryCeilingMB() float64 {
	if n.VRAMGB > 0 {
		return n.VRAMGB * 1024
	}
	return n.RAMGB * 1024
}

// CanFit reports whether a memory requirement fits under the node's ceiling.
func (n VirtualNode) CanFit(memoryMB float64) bool {
	return memoryMB <= n.MemoryCeilingMB()
}

// MemoryRich reports whether the node qualifies for memory-first placement
// (at least 16 GB VRAM or 32 GB RAM).
func (n VirtualNode) MemoryRich() bool {
	return n.VRAMGB >= 16 || n.RAMGB >= 32
}

// RankNodes returns nodes ordered by device priority (gpu > igpu > cpu),
// then compute score descending, then node id. The node id tie-break makes
// ranking fully deterministic.
func RankNodes(nodes []VirtualNode) []VirtualNode {
	ranked := make([]VirtualNode, len(nodes))
	copy(ranked, nodes)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.DeviceType.Priority() != b.DeviceType.Priority() {
			return a.DeviceType.Priority() > b.DeviceType.Priority()
		}
		if a.ComputeScore != b.ComputeScore {
			return a.ComputeScore > b.ComputeScore
		}
		return a.NodeID < b.NodeID
	})
	return ranked
}

// rankNodesBySpeed orders nodes purely by compute score descending, node id
// as the tie-break.
func rankNodesBySpeed(nodes []VirtualNode) []VirtualNode {
	ranked := make([]VirtualNode, len(nodes))
	copy(ranked, nodes)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ComputeScore != b.ComputeScore {
			return a.ComputeScore > b.ComputeScore
		}
		return a.NodeID < b.NodeID
	})
	return ranked
}

// rankNodesByMemory orders nodes memory-rich first, then by memory ceiling
// descending, node id as the tie-break.
func rankNodesByMemory(nodes []VirtualNode) []VirtualNode {
	ranked := make([]VirtualNode, len(nodes))
	copy(ranked, nodes)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.MemoryRich() != b.MemoryRich() {
			return a.MemoryRich()
		}
		if a.MemoryCeilingMB() != b.MemoryCeilingMB() {
			return a.MemoryCeilingMB() > b.MemoryCeilingMB()
		}
		return a.NodeID < b.NodeID
	})
	return ranked
}
