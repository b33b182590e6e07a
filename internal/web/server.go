// Package web provides the HTTP surface of the publish dialog service.
//
// The mini-app drives one publish dialog per session through a small JSON
// API: add/remove images, submit turns, confirm, retry, cancel, and poll
// the dialog snapshot. Session identity travels in a cookie or the
// X-Session-Id header; every dialog operation is keyed by it.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/roomli/publishd/internal/asset"
	"github.com/roomli/publishd/internal/dialog"
	"github.com/roomli/publishd/internal/log"
	"github.com/roomli/publishd/internal/upload"
)

const (
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration before timing out writes.
	// Generous because a turn handler blocks on the negotiation backend.
	WriteTimeout = 150 * time.Second

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout = 60 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// MaxUploadBodySize is the maximum size of an image upload request (20MB).
	MaxUploadBodySize = 20 * 1024 * 1024

	// MaxJSONBodySize is the maximum size of JSON request bodies (64KB).
	MaxJSONBodySize = 64 * 1024

	// MaxTurnRequestsPerMinute limits negotiation turns per session.
	MaxTurnRequestsPerMinute = 20

	// MaxUploadRequestsPerMinute limits upload batches per session.
	MaxUploadRequestsPerMinute = 10
)

// Options carries the tunables the server passes to each new dialog.
type Options struct {
	MaxImages     int
	NavigateDelay time.Duration
}

// Server provides HTTP serving for the publish dialog API.
type Server struct {
	addr     string
	server   *http.Server
	sessions *dialog.SessionManager
	uploads  *upload.Client
	logger   zerolog.Logger
}

// NewServer creates a Server. sender is the negotiation protocol client (an
// interface so tests can fake the backend); uploads is the image upload
// pipeline client.
func NewServer(addr string, sender dialog.TurnSender, uploads *upload.Client, opts Options) *Server {
	s := &Server{
		addr:    addr,
		uploads: uploads,
		logger:  log.WithComponent("web"),
	}

	s.sessions = dialog.NewSessionManager(func(sessionID string) *dialog.Session {
		nav := &dialog.RouteNavigator{}
		ctrl := dialog.NewController(dialog.Config{
			SessionID:     sessionID,
			MaxImages:     opts.MaxImages,
			NavigateDelay: opts.NavigateDelay,
			Sender:        sender,
			Navigator:     nav,
		})
		return &dialog.Session{ID: sessionID, Controller: ctrl, Nav: nav}
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	return s
}

// Sessions returns the server's session manager.
func (s *Server) Sessions() *dialog.SessionManager {
	return s.sessions
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// routes builds the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/publish", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Get("/", s.handleState)
		r.With(httprate.Limit(MaxUploadRequestsPerMinute, time.Minute, httprate.WithKeyFuncs(keyBySession))).
			Post("/images", s.handleUploadImages)
		r.Delete("/images/{id}", s.handleRemoveImage)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(MaxTurnRequestsPerMinute, time.Minute, httprate.WithKeyFuncs(keyBySession)))
			r.Post("/turn", s.handleTurn)
			r.Post("/confirm", s.handleConfirm)
		})

		r.Post("/retry", s.handleRetry)
		r.Post("/cancel", s.handleCancel)
	})

	return r
}

// keyBySession rate-limits per session, falling back to client IP for
// requests that somehow lack one.
func keyBySession(r *http.Request) (string, error) {
	if id := SessionIDFromRequest(r); id != "" {
		return id, nil
	}
	return httprate.KeyByIP(r)
}

// requestLogger logs one line per request with zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger := log.FromContext(r.Context())
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// session returns the dialog session for the current request.
func (s *Server) session(r *http.Request) *dialog.Session {
	return s.sessions.GetOrCreate(SessionIDFromRequest(r))
}

// stateResponse is the JSON envelope for dialog snapshots.
type stateResponse struct {
	dialog.Snapshot
	NavigateTo string `json:"navigateTo,omitempty"`
}

// writeState responds with the session's current dialog snapshot.
func (s *Server) writeState(w http.ResponseWriter, sess *dialog.Session, status int) {
	resp := stateResponse{
		Snapshot:   sess.Controller.Snapshot(),
		NavigateTo: sess.Nav.Route(),
	}
	writeJSON(w, status, resp)
}

// errorResponse is the JSON envelope for errors.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// dialogErrorStatus maps controller errors to HTTP status codes. Transport
// failures on a turn surface as 502: the dialog has already been reset and
// the snapshot carries the dismissible alert.
func dialogErrorStatus(err error) int {
	switch {
	case errors.Is(err, dialog.ErrTurnInFlight),
		errors.Is(err, dialog.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, dialog.ErrUploadsInFlight),
		errors.Is(err, dialog.ErrFailedUploads),
		errors.Is(err, dialog.ErrEmptySubmission),
		errors.Is(err, dialog.ErrNotEditable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleState returns the current dialog snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.session(r), http.StatusOK)
}

// handleUploadImages accepts a multipart batch of images, registers them
// with the tracker, uploads them as one batch, and reconciles the outcomes.
// The handler blocks until the batch resolves, so the uploading window a
// submission guard must observe is exactly the lifetime of this request.
func (s *Server) handleUploadImages(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBodySize)
	if err := r.ParseMultipartForm(MaxUploadBodySize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart body: %w", err))
		return
	}

	parts := r.MultipartForm.File["images"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no images in request"))
		return
	}

	files := make([]asset.File, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("failed to open part %q: %w", part.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read part %q: %w", part.Filename, err))
			return
		}
		files = append(files, asset.File{Name: part.Filename, Data: data})
	}

	accepted, err := sess.Controller.AddImages(files)
	if err != nil {
		writeError(w, dialogErrorStatus(err), err)
		return
	}
	if len(accepted) == 0 {
		// Pool is full; nothing was accepted.
		s.writeState(w, sess, http.StatusOK)
		return
	}

	batch := make([]upload.File, len(accepted))
	for i, a := range accepted {
		batch[i] = upload.File{ID: a.ID, Name: a.Name, Data: a.Data}
	}

	outcomes, err := s.uploads.UploadBatch(r.Context(), batch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resolved := make(map[string]asset.Outcome, len(outcomes))
	for id, out := range outcomes {
		resolved[id] = asset.Outcome{RemotePath: out.RemotePath, Err: out.Err}
	}
	sess.Controller.ResolveUploads(resolved)

	s.writeState(w, sess, http.StatusOK)
}

// handleRemoveImage deletes one asset regardless of its upload state.
func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	id := chi.URLParam(r, "id")

	if err := sess.Controller.RemoveImage(id); err != nil {
		if errors.Is(err, dialog.ErrNotEditable) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeState(w, sess, http.StatusOK)
}

// turnRequest is the JSON body for POST /turn.
type turnRequest struct {
	Message    string `json:"message"`
	BuildingID string `json:"buildingId,omitempty"`
}

// handleTurn submits the user's text as a negotiation turn.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)

	var req turnRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	if req.BuildingID != "" {
		sess.Controller.SetBuildingID(req.BuildingID)
	}

	if err := sess.Controller.Submit(r.Context(), req.Message); err != nil {
		writeError(w, dialogErrorStatus(err), err)
		return
	}
	s.writeState(w, sess, http.StatusOK)
}

// handleConfirm sends the confirm-creation turn.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)

	if err := sess.Controller.Confirm(r.Context()); err != nil {
		writeError(w, dialogErrorStatus(err), err)
		return
	}
	s.writeState(w, sess, http.StatusOK)
}

// handleRetry re-shows the preserved plan after a failed creation attempt.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)

	if err := sess.Controller.Retry(); err != nil {
		writeError(w, dialogErrorStatus(err), err)
		return
	}
	s.writeState(w, sess, http.StatusOK)
}

// handleCancel exits the dialog and discards its state.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)

	if err := sess.Controller.Cancel(); err != nil {
		writeError(w, dialogErrorStatus(err), err)
		return
	}
	s.writeState(w, sess, http.StatusOK)
	s.sessions.Delete(sess.ID)
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully. Returns an error if the server
// fails to start or shutdown does not complete in time.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("starting web server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.sessions.Close()
	return nil
}
