package negotiation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/roomli/publishd/internal/metrics"
)

const (
	// DefaultTimeout is the default timeout for a negotiation turn. Turns
	// can be slow (the backend runs a model), but a turn must never hang
	// forever: a timeout routes the dialog back to its form state.
	DefaultTimeout = 120 * time.Second

	// maxResponseSize bounds the endpoint's JSON response (1MB).
	maxResponseSize = 1 * 1024 * 1024
)

// Sentinel errors for negotiation client operations
var (
	// ErrUnavailable is returned when the negotiation endpoint is unreachable
	ErrUnavailable = errors.New("negotiation endpoint unreachable")
	// ErrTimeout is returned when a turn times out
	ErrTimeout = errors.New("negotiation turn timed out")
	// ErrRequestFailed is returned when the endpoint responds with a non-200 status
	ErrRequestFailed = errors.New("negotiation request failed")
	// ErrBadResponse is returned when the response body cannot be decoded
	ErrBadResponse = errors.New("malformed negotiation response")
)

// wireResponse is the endpoint's JSON reply format.
type wireResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Payload   struct {
		Status string       `json:"status"`
		Plan   *PublishPlan `json:"plan,omitempty"`
		RoomID string       `json:"roomId,omitempty"`
		Error  string       `json:"error,omitempty"`
	} `json:"payload"`
}

// Client sends negotiation turns to the backend AI endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a negotiation client for the given endpoint URL.
// If timeout is zero, DefaultTimeout is used.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendTurn sends one turn and returns the backend's structured response.
//
// By protocol contract an empty Message marks a confirm-creation turn; the
// controller guards non-confirm submissions so they always carry text or
// images. An unrecognized or missing status in the response decodes as
// StatusNeedMoreInfo rather than an error.
//
// Returns ErrUnavailable, ErrTimeout or ErrRequestFailed on transport-level
// failure; the dialog controller maps any of these to its single fallback
// edge (back to the form with a dismissible alert).
func (c *Client) SendTurn(ctx context.Context, turn Turn) (*Response, error) {
	body, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeTransportError).Inc()
		return nil, classifyError(err)
	}
	defer res.Body.Close()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())

	if res.StatusCode != http.StatusOK {
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeTransportError).Inc()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, res.StatusCode)
	}

	var decoded wireResponse
	limited := io.LimitReader(res.Body, maxResponseSize)
	if err := json.NewDecoder(limited).Decode(&decoded); err != nil {
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeTransportError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	resp := &Response{
		Message:   decoded.Message,
		Timestamp: parseTimestamp(decoded.Timestamp),
		Status:    ParseStatus(decoded.Payload.Status),
		Plan:      decoded.Payload.Plan,
		RoomID:    decoded.Payload.RoomID,
		ErrorText: decoded.Payload.Error,
	}
	metrics.TurnsTotal.WithLabelValues(string(resp.Status)).Inc()
	return resp, nil
}

// parseTimestamp parses the backend's RFC 3339 timestamp, falling back to
// the local clock when absent or unparseable.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return ts
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
