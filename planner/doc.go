// Package planner turns per-layer profiling metrics into a validated
// pipeline partition plan over heterogeneous compute nodes.
//
// # Reading Guide
//
// Start with these three files to understand the planning kernel:
//   - node.go: VirtualNode, device classes, and the deterministic node rankings
//   - planner.go: ExecutionPlanner, the shared sequential packing primitive,
//     and the optimization-note pass
//   - plan.go: PartitionPlan, Stage aggregates, and the embedded evaluator
//
// The four strategies share one contract (balanced.go, bottleneck.go,
// memory.go, latency.go): layers are always walked in layer-index order, and
// latency or memory figures only pick cut points and node assignment.
// Reordering layers would break data dependencies and make the plan
// unexecutable, so no strategy does it. Even bottleneck_first only uses its
// preference for fast nodes as an assignment decision.
//
// Planning is a pure, single-threaded, synchronous computation over an
// immutable metrics snapshot: identical inputs produce identical plans, and
// independent GeneratePlan calls may run in parallel.
package planner
