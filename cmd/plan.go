package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shardplan/shardplan/config"
	"github.com/shardplan/shardplan/planner"
	"github.com/shardplan/shardplan/profiler"
)

var (
	// CLI flags for the plan subcommand
	strategyName    string // Partitioning strategy
	modelName       string // Name of the model being partitioned
	constraintsPath string // Optional constraints file (yaml/json/toml)
	outputPath      string // Optional plan JSON output path
)

// planCmd generates a partition plan from a profiling export
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a partition plan from a profiling export",
	Run: func(cmd *cobra.Command, args []string) {
		collector, err := profiler.LoadJSONL(metricsPath)
		if err != nil {
			logrus.Fatalf("unable to load metrics: %v", err)
		}
		nodes, err := config.LoadNodes(nodesPath)
		if err != nil {
			logrus.Fatalf("unable to load node inventory: %v", err)
		}

		constraints := planner.DefaultConstraints()
		if constraintsPath != "" {
			constraints, err = config.LoadConstraints(constraintsPath)
			if err != nil {
				logrus.Fatalf("unable to load constraints: %v", err)
			}
		}
		strategy, err := planner.ParseStrategy(strategyName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		pl, err := planner.FromCollector(collector, strategy, &constraints)
		if err != nil {
			logrus.Fatalf("unable to build planner: %v", err)
		}
		plan, err := pl.GeneratePlan(nodes, modelName)
		if err != nil {
			logrus.Fatalf("planning failed: %v", err)
		}

		fmt.Print(plan.Visualize())

		if problems := plan.Validate(); len(problems) > 0 {
			for _, problem := range problems {
				logrus.Warnf("plan check: %s", problem)
			}
		}

		if outputPath != "" {
			data, err := plan.ToJSON()
			if err != nil {
				logrus.Fatalf("unable to serialize plan: %v", err)
			}
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				logrus.Fatalf("unable to write plan: %v", err)
			}
			logrus.Infof("plan written to %s", outputPath)
		}
	},
}

func init() {
	planCmd.Flags().StringVar(&metricsPath, "metrics", "", "Profiling JSONL export to plan from")
	planCmd.Flags().StringVar(&nodesPath, "nodes", "", "YAML node inventory")
	planCmd.Flags().StringVar(&strategyName, "strategy", "balanced", "Partitioning strategy (balanced, bottleneck_first, memory_aware, latency_optimized)")
	planCmd.Flags().StringVar(&modelName, "model", "", "Name of the model being partitioned")
	planCmd.Flags().StringVar(&constraintsPath, "constraints", "", "Planning constraints file (.yaml, .json, or .toml)")
	planCmd.Flags().StringVar(&outputPath, "output", "", "Write the plan as JSON to this path")

	_ = planCmd.MarkFlagRequired("metrics")
	_ = planCmd.MarkFlagRequired("nodes")
}
