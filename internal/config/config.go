// Package config provides configuration management for the publishd service.
//
// Configuration is parsed from CLI flags with sensible defaults. Endpoint
// URLs may also be supplied through environment variables so deployments can
// avoid baking backend addresses into unit files; flags take precedence.
// The Config struct is passed to components during initialization.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"
)

const (
	// Version is the publishd service version
	Version = "0.1.0"

	// Environment variable names for endpoint overrides
	EnvUploadURL      = "PUBLISHD_UPLOAD_URL"
	EnvNegotiationURL = "PUBLISHD_NEGOTIATION_URL"

	// Default values for CLI flags
	defaultPort           = 8080
	defaultUploadURL      = "http://localhost:9090/api/storage/upload"
	defaultNegotiationURL = "http://localhost:9090/api/assistant/publish"
	defaultUploadTimeout  = 60 * time.Second
	defaultTurnTimeout    = 120 * time.Second
	defaultNavigateDelay  = 1500 * time.Millisecond
	defaultMaxImages      = 5
	defaultLogLevel       = "info"

	// Validation constraints
	minPort      = 1024
	maxPort      = 65535
	minTimeout   = 1 * time.Second
	maxTimeout   = 10 * time.Minute
	minMaxImages = 1
	maxMaxImages = 10
)

var (
	// ErrInvalidPort is returned when port is out of valid range
	ErrInvalidPort = errors.New("port must be between 1024 and 65535")
	// ErrInvalidUploadURL is returned when the upload endpoint URL is not a valid http(s) URL
	ErrInvalidUploadURL = errors.New("upload-url must be a valid http or https URL")
	// ErrInvalidNegotiationURL is returned when the negotiation endpoint URL is not a valid http(s) URL
	ErrInvalidNegotiationURL = errors.New("negotiation-url must be a valid http or https URL")
	// ErrInvalidUploadTimeout is returned when the upload timeout is out of range
	ErrInvalidUploadTimeout = errors.New("upload-timeout must be between 1s and 10m")
	// ErrInvalidTurnTimeout is returned when the negotiation turn timeout is out of range
	ErrInvalidTurnTimeout = errors.New("turn-timeout must be between 1s and 10m")
	// ErrInvalidNavigateDelay is returned when the navigate delay is negative
	ErrInvalidNavigateDelay = errors.New("navigate-delay must be >= 0")
	// ErrInvalidMaxImages is returned when max images is out of valid range
	ErrInvalidMaxImages = errors.New("max-images must be between 1 and 10")
	// ErrInvalidLogLevel is returned when log level is not recognized
	ErrInvalidLogLevel = errors.New("log-level must be one of: trace, debug, info, warn, error")
	// ErrShowHelp is returned when --help flag is requested
	ErrShowHelp = errors.New("help requested")
	// ErrShowVersion is returned when --version flag is requested
	ErrShowVersion = errors.New("version requested")
)

// Config holds all configuration values for the publishd service.
// Values are populated from CLI flags with defaults applied.
type Config struct {
	// Server configuration
	Port int

	// External collaborator endpoints
	UploadURL      string
	NegotiationURL string

	// Timeouts for the two suspension points (upload batch, negotiation turn)
	UploadTimeout time.Duration
	TurnTimeout   time.Duration

	// NavigateDelay is how long a created listing is displayed before the
	// client is told to navigate to the new resource.
	NavigateDelay time.Duration

	// MaxImages bounds the per-dialog image pool.
	MaxImages int

	// Logging configuration
	LogLevel string

	// Internal flags
	showHelp    bool
	showVersion bool
}

// Parse parses CLI flags into a Config struct.
// It returns the parsed Config or an error if validation fails.
// If --help or --version is requested, it prints the output and exits.
func Parse(args []string, output io.Writer) (*Config, error) {
	c := &Config{}

	fs := flag.NewFlagSet("publishd", flag.ContinueOnError)
	fs.SetOutput(output)

	// Server flags
	fs.IntVar(&c.Port, "port", defaultPort, "HTTP server port")

	// Endpoint flags (env overlay applied as defaults, flags win)
	fs.StringVar(&c.UploadURL, "upload-url", envOrDefault(EnvUploadURL, defaultUploadURL), "File upload endpoint URL")
	fs.StringVar(&c.NegotiationURL, "negotiation-url", envOrDefault(EnvNegotiationURL, defaultNegotiationURL), "AI negotiation endpoint URL")

	// Timeout flags
	fs.DurationVar(&c.UploadTimeout, "upload-timeout", defaultUploadTimeout, "Timeout for an image upload batch")
	fs.DurationVar(&c.TurnTimeout, "turn-timeout", defaultTurnTimeout, "Timeout for a negotiation turn")
	fs.DurationVar(&c.NavigateDelay, "navigate-delay", defaultNavigateDelay, "Delay before navigating to a created listing")

	// Dialog flags
	fs.IntVar(&c.MaxImages, "max-images", defaultMaxImages, "Maximum number of images per publish dialog")

	// Logging flags
	fs.StringVar(&c.LogLevel, "log-level", defaultLogLevel, "Log level (trace, debug, info, warn, error)")

	// Special flags
	fs.BoolVar(&c.showHelp, "help", false, "Show help message")
	fs.BoolVar(&c.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.showHelp {
		printHelp(output, fs)
		return nil, ErrShowHelp
	}

	if c.showVersion {
		fmt.Fprintf(output, "publishd %s\n", Version)
		return nil, ErrShowVersion
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// validate checks all configuration values against their constraints.
func (c *Config) validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if !validHTTPURL(c.UploadURL) {
		return fmt.Errorf("%w: got %q", ErrInvalidUploadURL, c.UploadURL)
	}
	if !validHTTPURL(c.NegotiationURL) {
		return fmt.Errorf("%w: got %q", ErrInvalidNegotiationURL, c.NegotiationURL)
	}
	if c.UploadTimeout < minTimeout || c.UploadTimeout > maxTimeout {
		return fmt.Errorf("%w: got %s", ErrInvalidUploadTimeout, c.UploadTimeout)
	}
	if c.TurnTimeout < minTimeout || c.TurnTimeout > maxTimeout {
		return fmt.Errorf("%w: got %s", ErrInvalidTurnTimeout, c.TurnTimeout)
	}
	if c.NavigateDelay < 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidNavigateDelay, c.NavigateDelay)
	}
	if c.MaxImages < minMaxImages || c.MaxImages > maxMaxImages {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxImages, c.MaxImages)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// validHTTPURL reports whether s parses as an absolute http or https URL.
func validHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// envOrDefault returns the environment variable value if set, otherwise def.
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// printHelp prints usage information.
func printHelp(output io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(output, "publishd - AI-assisted room publishing dialog service\n\n")
	fmt.Fprintf(output, "Usage: publishd [flags]\n\nFlags:\n")
	fs.PrintDefaults()
}
