package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/privategpt-go/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show in-memory runtime statistics of the server: timings of embedding,
retrieval and generation calls plus ingestion counters.

Examples:
  privategpt stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := apiClient().GetServerStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(stats *metrics.Snapshot) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", stats.UptimeSeconds)

	for _, name := range slices.Sorted(maps.Keys(stats.Operations)) {
		fmt.Printf("\n%s:\n", name)
		printOpStats(stats.Operations[name])
	}

	if len(stats.Counters) > 0 {
		fmt.Printf("\nCounters:\n")
		for _, name := range slices.Sorted(maps.Keys(stats.Counters)) {
			fmt.Printf("  %-20s %d\n", name, stats.Counters[name])
		}
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
