// Package startup wires the publishd components together and manages the
// service lifecycle: initialization, backend validation, and shutdown.
package startup

import (
	"fmt"

	"github.com/roomli/publishd/internal/config"
	"github.com/roomli/publishd/internal/dialog"
	"github.com/roomli/publishd/internal/negotiation"
	"github.com/roomli/publishd/internal/upload"
	"github.com/roomli/publishd/internal/web"
)

// Components holds all initialized application components.
type Components struct {
	Negotiator *negotiation.Client
	Uploads    *upload.Client
	WebServer  *web.Server
}

// CreateNegotiationClient creates the negotiation protocol client with the
// configured endpoint and turn timeout.
func CreateNegotiationClient(cfg *config.Config) *negotiation.Client {
	return negotiation.NewClient(cfg.NegotiationURL, cfg.TurnTimeout)
}

// CreateUploadClient creates the image upload pipeline client with the
// configured endpoint and batch timeout.
func CreateUploadClient(cfg *config.Config) *upload.Client {
	return upload.NewClient(cfg.UploadURL, cfg.UploadTimeout)
}

// CreateWebServer creates the HTTP server with all dependencies wired.
func CreateWebServer(cfg *config.Config, negotiator dialog.TurnSender, uploads *upload.Client) *web.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	return web.NewServer(addr, negotiator, uploads, web.Options{
		MaxImages:     cfg.MaxImages,
		NavigateDelay: cfg.NavigateDelay,
	})
}

// InitializeAll creates and wires all application components.
// It does NOT validate backend reachability; use ValidateBackends separately.
func InitializeAll(cfg *config.Config) *Components {
	negotiator := CreateNegotiationClient(cfg)
	uploads := CreateUploadClient(cfg)
	server := CreateWebServer(cfg, negotiator, uploads)

	return &Components{
		Negotiator: negotiator,
		Uploads:    uploads,
		WebServer:  server,
	}
}
