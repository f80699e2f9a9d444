package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a single document with the language model",
	Long: `Summarize a single document with the configured language model.

The document is split into chunks, each chunk is summarized, and the partial
summaries are combined into one.

Examples:
  privategpt summarize source_documents/report.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := services(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n--- Summarizing: %s ---\n", args[0])
	summary, err := a.Summarize.Summarize(ctx, args[0])
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	if verbose {
		fmt.Printf("(%d chunks, ~%d tokens)\n", summary.Chunks, summary.Tokens)
	}
	fmt.Println("\n--- Summary ---")
	fmt.Println(summary.Summary)
	fmt.Println("\n--- End of Summary ---")
	return nil
}
