package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/privategpt-go/internal/service"
)

var (
	askHideSource bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested documents",
	Long: `Ask a question about the ingested documents and print the answer with the
chunks it was based on.

Without a question, starts an interactive session; type 'exit' to quit.

Examples:
  privategpt ask "What is the capital of Freedonia?"
  privategpt ask "Summarize the budget" --hide-source
  privategpt ask`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askHideSource, "hide-source", "S", false, "do not print the source documents used for answers")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := services(ctx)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return answerOnce(ctx, a.Query, args[0], os.Stdout)
	}

	fmt.Println("Running privategpt in interactive mode. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nEnter a query (exit to quit): ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "exit") {
			fmt.Println("Exiting.")
			return nil
		}
		if query == "" {
			continue
		}
		if err := answerOnce(ctx, a.Query, query, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}
	}
}

func answerOnce(ctx context.Context, q *service.QueryService, query string, w io.Writer) error {
	fmt.Fprintln(w, "Processing your query... Please wait.")
	answer, err := q.Answer(ctx, query)
	if err != nil {
		return err
	}
	printAnswer(w, query, answer, askHideSource)
	return nil
}

// printAnswer writes the question, the answer and, unless hidden, every
// source chunk with its file name.
func printAnswer(w io.Writer, query string, answer *service.Answer, hideSources bool) {
	fmt.Fprintln(w, "\n\n> Question:")
	fmt.Fprintln(w, query)
	fmt.Fprintln(w, "\n> Answer:")
	fmt.Fprintln(w, answer.Answer)

	if hideSources || len(answer.SourceDocuments) == 0 {
		return
	}
	fmt.Fprintln(w, "\n> Sources:")
	for i, doc := range answer.SourceDocuments {
		source, _ := doc.Metadata["source"].(string)
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(w, "\n  Source %d (%s):\n", i+1, filepath.Base(source))
		fmt.Fprintln(w, doc.PageContent)
	}
}
