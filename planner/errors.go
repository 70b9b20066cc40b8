package planner

import "fmt"

// NoAvailableNodesError is returned by GeneratePlan when the caller supplies
// an empty node list.
type NoAvailableNodesError struct {
	ModelName string
}

func (e NoAvailableNodesError) Error() string {
	return fmt.Sprintf("no available nodes to plan %q", e.ModelName)
}

// NoMetricsError is returned by GeneratePlan when no finalized layer
// metrics exist to partition.
type NoMetricsError struct {
	ModelName string
}

func (e NoMetricsError) Error() string {
	return fmt.Sprintf("no layer metrics available to plan %q", e.ModelName)
}
