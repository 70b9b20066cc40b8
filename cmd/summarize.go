package cmd

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shardplan/shardplan/profiler"
)

// summarizeCmd prints a per-layer aggregate over a profiling export
var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize a profiling export per layer",
	Run: func(cmd *cobra.Command, args []string) {
		collector, err := profiler.LoadJSONL(metricsPath)
		if err != nil {
			logrus.Fatalf("unable to load metrics: %v", err)
		}
		collector.ComputePercentiles()
		summary := collector.Summary()

		names := make([]string, 0, len(summary))
		for name := range summary {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return summary[names[i]].LayerIndex < summary[names[j]].LayerIndex
		})

		fmt.Printf("%-32s %-20s %6s %12s %12s %12s %14s\n",
			"LAYER", "TYPE", "RUNS", "AVG MS", "P95 MS", "VRAM MB", "PARAMS")
		for _, name := range names {
			s := summary[name]
			fmt.Printf("%-32s %-20s %6d %12.2f %12.2f %12.1f %14d\n",
				name, s.LayerType, s.TotalRuns, s.AvgLatencyMs, s.P95LatencyMs, s.TotalVRAMMB, s.NumParameters)
		}
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&metricsPath, "metrics", "", "Profiling JSONL export to summarize")
	_ = summarizeCmd.MarkFlagRequired("metrics")
}
