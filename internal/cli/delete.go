package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/privategpt-go/internal/client"
)

var (
	deleteForce bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete a document from the server",
	Long: `Delete a document from the server by its original filename.

The server re-ingests the remaining documents afterwards so the deleted
document's chunks no longer answer queries.
Requires confirmation unless --force is used.

Examples:
  privategpt delete report.pdf
  privategpt delete old-notes.md --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	filename := args[0]

	if !deleteForce {
		fmt.Printf("About to delete: %s\n", filename)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	result, err := apiClient().DeleteDocument(cmd.Context(), filename)
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("document not found: %s", filename)
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	fmt.Println(result.Message)
	fmt.Printf("Re-ingestion task: %s\n", result.TaskID)
	return nil
}
