package startup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roomli/publishd/internal/config"
)

func testConfig(uploadURL, negotiationURL string) *config.Config {
	return &config.Config{
		Port:           8080,
		UploadURL:      uploadURL,
		NegotiationURL: negotiationURL,
		UploadTimeout:  time.Second,
		TurnTimeout:    time.Second,
		MaxImages:      5,
	}
}

func TestValidateBackendsReachable(t *testing.T) {
	// POST-only endpoints answer the GET probe with 405; that still counts
	// as reachable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL+"/upload", srv.URL+"/publish")
	if err := ValidateBackends(context.Background(), cfg); err != nil {
		t.Fatalf("ValidateBackends() failed: %v", err)
	}
}

func TestValidateBackendsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := testConfig(srv.URL+"/upload", srv.URL+"/publish")
	err := ValidateBackends(context.Background(), cfg)
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("ValidateBackends() error = %v, want ErrBackendUnreachable", err)
	}
}

func TestInitializeAll(t *testing.T) {
	cfg := testConfig("http://localhost:9090/upload", "http://localhost:9090/publish")

	components := InitializeAll(cfg)
	defer components.WebServer.Sessions().Close()

	if components.Negotiator == nil {
		t.Error("negotiation client not initialized")
	}
	if components.Uploads == nil {
		t.Error("upload client not initialized")
	}
	if components.WebServer == nil {
		t.Error("web server not initialized")
	}
}
