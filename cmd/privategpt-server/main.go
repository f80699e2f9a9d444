// Package main provides the HTTP API server for privategpt.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/privategpt-go/internal/app"
	"github.com/raphaelgruber/privategpt-go/internal/config"
	"github.com/raphaelgruber/privategpt-go/internal/server"
)

func main() {
	addr := flag.String("addr", "", "listen address (default :$SERVER_PORT)")
	flag.Parse()

	cfg := config.Load()
	logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLogger() }()

	listen := *addr
	if listen == "" {
		listen = ":" + cfg.ServerPort
	}

	logger.Info("starting privategpt-server",
		"addr", listen,
		"source_directory", cfg.SourceDirectory,
		"persist_directory", cfg.PersistDirectory,
		"vector_store", cfg.VectorStore,
		"auth", cfg.JWTSecret != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Runner.Start(ctx)

	srv := server.New(a.ServerOptions(), a.ServerDeps(), logger)
	if err := srv.ListenAndServe(ctx, listen); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
