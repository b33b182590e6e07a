package upload

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Sentinel errors for upload pipeline operations
var (
	// ErrUnavailable is returned when the upload endpoint is unreachable
	ErrUnavailable = errors.New("upload endpoint unreachable")
	// ErrTimeout is returned when an upload batch times out
	ErrTimeout = errors.New("upload timed out")
	// ErrRequestFailed is returned when the endpoint responds with a non-200 status
	ErrRequestFailed = errors.New("upload request failed")
	// ErrBadResponse is returned when the endpoint returns a malformed or
	// misaligned outcome list
	ErrBadResponse = errors.New("malformed upload response")
	// ErrBatchFailed wraps a per-file failure reported in the endpoint's
	// errors list
	ErrBatchFailed = errors.New("upload rejected by endpoint")
)

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
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrUnavailable
	}
	return ErrUnavailable
}
