package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Ingest documents into the vector store",
	Long: `Ingest documents into the vector store.

Without arguments every supported file under SOURCE_DIRECTORY is ingested;
files already in the store are skipped and chunks of files that no longer
exist are removed. With arguments only the given files are ingested, and
files that fail to load are deleted.

Examples:
  privategpt ingest
  privategpt ingest source_documents/report.pdf notes.md`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := services(ctx)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		fmt.Printf("Loading documents from %s\n", a.Ingest.SourceDir())
	} else {
		fmt.Printf("Processing %d document(s)...\n", len(args))
	}

	result := a.Ingest.Ingest(ctx, args)

	for _, e := range result.Errors {
		fmt.Printf("Warning: %s\n", e)
	}
	if result.Failed() {
		return fmt.Errorf("ingestion failed: %s", result.Error)
	}

	fmt.Printf("Ingestion result: %s (%d chunks", result.Message, result.ChunksIngested)
	if result.ChunksRemoved > 0 {
		fmt.Printf(", %d removed", result.ChunksRemoved)
	}
	fmt.Println(").")
	if result.FilesProcessed+result.FilesSkipped > 0 {
		fmt.Printf("Processed %d file(s), skipped %d.\n", result.FilesProcessed, result.FilesSkipped)
	}
	fmt.Println("You can now run 'privategpt ask' to query your documents.")
	return nil
}
