package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/api"
	"github.com/cardiocare-risk-server/internal/app"
	"github.com/cardiocare-risk-server/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(*configFile)
	if err != nil {
		config.NewLogger("info", "json").WithError(err).Fatal("Failed to load configuration")
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise application")
	}
	defer a.Close()

	logger.WithField("host", cfg.Server.Host).
		WithField("port", cfg.Server.Port).
		Info("Starting CardioCare risk server")

	server := api.NewServer(configManager, a)

	// SIGHUP reloads the configuration; only the log level applies live.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				reloadLogLevel(configManager, logger)
				continue
			}
			logger.Info("Shutdown signal received, gracefully shutting down...")
			cancel()
			return
		}
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		a.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}

func reloadLogLevel(configManager *config.Manager, logger *logrus.Logger) {
	if err := configManager.Reload(); err != nil {
		logger.WithError(err).Error("Configuration reload failed")
		return
	}
	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Error("Reloaded configuration is invalid")
		return
	}

	level, err := logrus.ParseLevel(configManager.GetConfig().Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level after reload")
		return
	}
	logger.SetLevel(level)
	logger.WithField("level", level.String()).Info("Configuration reloaded")
}
