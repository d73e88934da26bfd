// Package main provides the stdio MCP entry point of the CardioCare risk server.
// It needs no external services: records live in a CSV or SQLite file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cardiocare-risk-server/internal/app"
	"github.com/cardiocare-risk-server/internal/config"
	"github.com/cardiocare-risk-server/internal/mcp"
	"github.com/cardiocare-risk-server/internal/setup"
)

func main() {
	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(os.Stdin, os.Stdout)
		if err := cli.Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	lite := config.LoadLiteConfig()
	// stdout carries the MCP stream
	logger := config.NewLoggerTo(os.Stderr, lite.LogLevel, lite.LogFormat)

	if err := lite.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	logger.WithField("data_dir", lite.DataDir).
		WithField("records_backend", lite.RecordsBackend).
		Info("Starting CardioCare MCP server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, lite.ToConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise application")
	}
	defer a.Close()

	server, err := mcp.NewServer(ctx, a)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		a.Close()
		os.Exit(1)
	}

	logger.Info("CardioCare MCP server stopped")
}
