package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medscan-console/internal/config"
	"github.com/medscan-console/internal/logging"
	"github.com/medscan-console/internal/stubserver"
	"github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	configManager, err := config.NewManager(opts...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The stub always logs to stderr
	if err := configManager.Set("logging.output", "stderr"); err != nil {
		log.Fatalf("Failed to apply logging override: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	logger.WithFields(logrus.Fields{
		"host": cfg.Stub.Host,
		"port": cfg.Stub.Port,
	}).Info("Starting medscan stub backend")

	server := stubserver.New(logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx, cfg.Stub); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
