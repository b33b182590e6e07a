package startup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/roomli/publishd/internal/config"
)

const (
	// validateTimeout bounds each reachability probe at boot.
	validateTimeout = 5 * time.Second
)

// ErrBackendUnreachable is returned when a collaborator endpoint cannot be
// reached at startup.
var ErrBackendUnreachable = errors.New("backend endpoint unreachable")

// ValidateBackends probes both collaborator endpoints. Any HTTP response
// counts as reachable (the endpoints are POST-only, so a 405 on GET is
// fine); only transport failures are errors.
func ValidateBackends(ctx context.Context, cfg *config.Config) error {
	if err := probe(ctx, cfg.NegotiationURL); err != nil {
		return fmt.Errorf("%w: negotiation endpoint %s: %v", ErrBackendUnreachable, cfg.NegotiationURL, err)
	}
	if err := probe(ctx, cfg.UploadURL); err != nil {
		return fmt.Errorf("%w: upload endpoint %s: %v", ErrBackendUnreachable, cfg.UploadURL, err)
	}
	return nil
}

// probe issues a GET with a short timeout and discards the response.
func probe(ctx context.Context, url string) error {
	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}
