// Package main provides the MCP server for privategpt over stdio.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/raphaelgruber/privategpt-go/internal/app"
	"github.com/raphaelgruber/privategpt-go/internal/config"
	"github.com/raphaelgruber/privategpt-go/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// stdout carries the protocol; logs go to stderr and LOG_FILE.
	logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLogger() }()

	logger.Info("privategpt-mcp starting",
		"version", version,
		"source_directory", cfg.SourceDirectory,
		"vector_store", cfg.VectorStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	s := server.NewMCPServer("privategpt", version, server.WithLogging())
	tools.RegisterAll(s, a.ToolDeps())
	logger.Info("server ready, awaiting connections")

	if err := server.ServeStdio(s); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
