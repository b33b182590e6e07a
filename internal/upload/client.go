// Package upload implements the image upload pipeline.
//
// The pipeline issues one batched multipart request for the whole pending
// set of files, not one request per file. The endpoint's outcome lists are
// positionally aligned with the request's file list: outcome i belongs to
// file i. Nothing is matched by filename or content hash, so callers must
// preserve submission order end-to-end.
//
// The pipeline never retries. On transport failure the entire batch is
// reported failed; partial success is only possible when the endpoint
// itself returns partially-populated results. The caller (the asset
// tracker, via the dialog controller) surfaces failures and the user
// decides whether to remove and re-add an image or proceed without it.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/roomli/publishd/internal/metrics"
)

const (
	// DefaultTimeout is the default timeout for an upload batch.
	DefaultTimeout = 60 * time.Second

	// fileField is the multipart form field name for each file part.
	fileField = "files"

	// maxResponseSize bounds the endpoint's JSON response (1MB).
	maxResponseSize = 1 * 1024 * 1024
)

// File is one file in an upload batch. ID is the caller's asset id; it is
// never sent to the endpoint and only serves to key the returned outcomes.
type File struct {
	ID   string
	Name string
	Data []byte
}

// Outcome is the result of uploading a single file.
// Exactly one of RemotePath and Err is meaningful.
type Outcome struct {
	RemotePath string
	Err        error
}

// batchResponse is the endpoint's wire format. The paths and errors arrays
// are positionally aligned with the request's file parts; for each index
// exactly one of the two is expected to be non-null.
type batchResponse struct {
	Paths  []*string `json:"paths"`
	Errors []*string `json:"errors"`
}

// Client uploads image batches to the storage endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates an upload client for the given endpoint URL.
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

// UploadBatch uploads all files in one request and returns one outcome per
// file, keyed by the file's ID and positionally derived from the endpoint's
// response. On transport failure every file's outcome carries the transport
// error; UploadBatch itself only returns an error for caller mistakes
// (empty batch).
func (c *Client) UploadBatch(ctx context.Context, files []File) (map[string]Outcome, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("upload batch must not be empty")
	}

	resp, err := c.post(ctx, files)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeTransportError).Add(float64(len(files)))
		return failAll(files, err), nil
	}

	outcomes := make(map[string]Outcome, len(files))
	for i, f := range files {
		out := outcomeAt(resp, i)
		if out.Err != nil {
			metrics.UploadsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		} else {
			metrics.UploadsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		}
		outcomes[f.ID] = out
	}
	return outcomes, nil
}

// post issues the multipart request and decodes the endpoint's response.
func (c *Client) post(ctx context.Context, files []File) (*batchResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile(fileField, f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, res.StatusCode)
	}

	var decoded batchResponse
	limited := io.LimitReader(res.Body, maxResponseSize)
	if err := json.NewDecoder(limited).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return &decoded, nil
}

// outcomeAt extracts the outcome for file index i from the response.
// A missing or null entry at i is a contract violation and yields a failed
// outcome rather than an invented success.
func outcomeAt(resp *batchResponse, i int) Outcome {
	if i < len(resp.Paths) && resp.Paths[i] != nil && *resp.Paths[i] != "" {
		return Outcome{RemotePath: *resp.Paths[i]}
	}
	if i < len(resp.Errors) && resp.Errors[i] != nil {
		return Outcome{Err: fmt.Errorf("%w: %s", ErrBatchFailed, *resp.Errors[i])}
	}
	return Outcome{Err: fmt.Errorf("%w: no outcome at index %d", ErrBadResponse, i)}
}

// failAll returns an outcome map marking every file failed with err.
func failAll(files []File, err error) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(files))
	for _, f := range files {
		outcomes[f.ID] = Outcome{Err: err}
	}
	return outcomes
}
