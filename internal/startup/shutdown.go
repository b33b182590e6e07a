package startup

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/roomli/publishd/internal/web"
)

// Run starts the web server and blocks until a shutdown signal (SIGINT or
// SIGTERM) is received or the server fails. On signal, the server drains
// in-flight requests before returning.
func Run(ctx context.Context, server *web.Server, logger zerolog.Logger) error {
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := server.ListenAndServe(signalCtx)
	if err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
