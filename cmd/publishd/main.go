package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roomli/publishd/internal/config"
	"github.com/roomli/publishd/internal/log"
	"github.com/roomli/publishd/internal/startup"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse configuration from CLI flags
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, config.ErrShowHelp) || errors.Is(err, config.ErrShowVersion) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("main")

	logger.Info().Str("version", config.Version).Msg("starting publishd")
	logger.Debug().
		Int("port", cfg.Port).
		Str("upload_url", cfg.UploadURL).
		Str("negotiation_url", cfg.NegotiationURL).
		Dur("turn_timeout", cfg.TurnTimeout).
		Int("max_images", cfg.MaxImages).
		Msg("configuration")

	ctx := context.Background()

	// Validate that both collaborator endpoints are reachable
	if err := startup.ValidateBackends(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("backend validation failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nPlease ensure the upload and negotiation endpoints are running,\n")
		fmt.Fprintf(os.Stderr, "or point publishd at them with --upload-url and --negotiation-url.\n")
		return 1
	}
	logger.Info().Msg("backend endpoints reachable")

	// Initialize all components
	components := startup.InitializeAll(cfg)
	logger.Info().Int("port", cfg.Port).Msg("listening")

	// Run server and wait for shutdown signal
	if err := startup.Run(ctx, components.WebServer, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}
