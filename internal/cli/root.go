// Package cli provides the command-line interface for privategpt.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/privategpt-go/internal/app"
	"github.com/raphaelgruber/privategpt-go/internal/client"
	"github.com/raphaelgruber/privategpt-go/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config and logger
	cfg           config.Config
	logger        *slog.Logger
	closeLogger   func() error
	localServices *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "privategpt",
	Short: "Ask questions about your documents with a local LLM",
	Long: `privategpt ingests documents into a vector store and answers questions
about them with a language model, without the documents leaving your machine.

Local commands (ingest, ask, summarize) work directly on SOURCE_DIRECTORY
and PERSIST_DIRECTORY. Server commands (upload, status, docs, delete, stats)
talk to a running privategpt-server at PRIVATEGPT_URL, sending
PRIVATEGPT_TOKEN as the bearer token when set.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if localServices != nil {
			localServices.Close()
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// services builds the local services on first use.
func services(ctx context.Context) (*app.App, error) {
	if localServices != nil {
		return localServices, nil
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	localServices = a
	return a, nil
}

// apiClient returns a client for the API server.
func apiClient() *client.Client {
	if serverURL != "" {
		return client.New(serverURL)
	}
	return client.New(cfg.ServerURL)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// ctx is cancelled on interrupt and reaches every command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API server URL (default $PRIVATEGPT_URL)")

	// Local commands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(summarizeCmd)

	// Server commands
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
}
