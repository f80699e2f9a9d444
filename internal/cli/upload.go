package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

var (
	uploadNoWait bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <files...>",
	Short: "Upload documents to the server for ingestion",
	Long: `Upload documents to a running privategpt-server and ingest them in the
background.

By default the command follows the ingestion task until it finishes; press
Ctrl+C to leave it running in the background.

Examples:
  privategpt upload report.pdf notes.md
  privategpt upload *.pdf --no-wait`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadNoWait, "no-wait", false, "return after the upload without following ingestion")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := apiClient()

	result, err := c.Upload(ctx, args)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	fmt.Println(result.Message)
	fmt.Printf("Task ID: %s\n", result.TaskID)
	if uploadNoWait {
		fmt.Printf("Use 'privategpt status %s' to check status.\n", result.TaskID)
		return nil
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return RunTaskProgress(c, result.TaskID)
	}

	last := tasks.Status("")
	task, err := c.WaitForTask(ctx, result.TaskID, pollInterval, func(t *tasks.Task) {
		if t.Status != last {
			fmt.Printf("Status: %s\n", t.Status)
			last = t.Status
		}
	})
	if err != nil {
		return fmt.Errorf("wait for task: %w", err)
	}
	if task.Status == tasks.StatusFailed {
		return taskError(task)
	}
	fmt.Print(renderTaskResult(defaultTheme, task))
	return nil
}
