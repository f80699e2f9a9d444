package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents on the server",
	Long: `List the original names of the documents stored on the server.

Examples:
  privategpt docs`,
	Args: cobra.NoArgs,
	RunE: runDocs,
}

func runDocs(cmd *cobra.Command, args []string) error {
	docs, err := apiClient().ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents found")
		return nil
	}
	for _, d := range docs {
		fmt.Println(d)
	}
	fmt.Printf("\n%d document(s)\n", len(docs))
	return nil
}
