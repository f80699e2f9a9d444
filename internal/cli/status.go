package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/privategpt-go/internal/client"
	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "List or inspect ingestion tasks",
	Long: `List all ingestion tasks on the server or inspect a specific task by ID.

Examples:
  privategpt status                                       # List all tasks
  privategpt status 6f1c2b9e-3d4a-4e5f-8a7b-1c2d3e4f5a6b  # Show one task`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := apiClient()

	if len(args) == 1 {
		return showTask(ctx, c, args[0])
	}
	return listTasks(ctx, c)
}

func listTasks(ctx context.Context, c *client.Client) error {
	list, err := c.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Printf("%-36s %-9s %-12s %-8s %s\n", "ID", "KIND", "STATUS", "FILES", "CREATED")
	fmt.Println("------------------------------------------------------------------------------------")

	for i := range list {
		t := &list[i]
		files := ""
		if len(t.Files) > 0 {
			done, total := fileCounts(t)
			files = fmt.Sprintf("%d/%d", done, total)
		}
		fmt.Printf("%-36s %-9s %-12s %-8s %s\n", t.ID, t.Kind, t.Status, files, t.CreatedAt.Local().Format("15:04:05"))
	}
	return nil
}

func showTask(ctx context.Context, c *client.Client, id string) error {
	t, err := c.GetTask(ctx, id)
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("task not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	printTask(t)
	return nil
}

func printTask(t *tasks.Task) {
	fmt.Printf("Task: %s\n", t.ID)
	fmt.Printf("  Kind: %s\n", t.Kind)
	fmt.Printf("  Status: %s\n", t.Status)
	fmt.Printf("  Created: %s\n", t.CreatedAt.Format(time.RFC3339))
	if t.Status.Terminal() {
		fmt.Printf("  Finished: %s\n", t.UpdatedAt.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", t.UpdatedAt.Sub(t.CreatedAt).Round(time.Second))
	}
	if t.Message != "" {
		fmt.Printf("  Result: %s\n", t.Message)
	}
	if t.ChunksIngested > 0 {
		fmt.Printf("  Chunks ingested: %d\n", t.ChunksIngested)
	}
	if t.Error != "" {
		fmt.Printf("  Error: %s\n", t.Error)
	}

	if len(t.Files) > 0 {
		fmt.Printf("\nFiles (%d):\n", len(t.Files))
		for _, f := range t.Files {
			fmt.Printf("  %-12s %s\n", f.Status, f.Filename)
		}
	}
}
