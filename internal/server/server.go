// Package server exposes the plat pipeline over HTTP: one upload endpoint
// that runs a full pipeline invocation per request.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"platmaster/internal/annotate"
	"platmaster/internal/logger"
	"platmaster/internal/pipeline"
)

// maxUploadBytes bounds the multipart form held in memory per request.
const maxUploadBytes = 100 << 20 // 100MB

// Server serves plat extraction over HTTP.
type Server struct {
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	log        zerolog.Logger
}

// Config holds server settings.
type Config struct {
	// Addr is the listen address (default ":7777").
	Addr string
}

// New creates a Server around the given pipeline.
func New(p *pipeline.Pipeline, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":7777"
	}

	s := &Server{
		pipeline: p,
		log:      logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Handler returns the route handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until the context is canceled or
// the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleExtract accepts one PDF upload and returns the document result.
// Requests run their pipeline invocation to completion before returning;
// concurrent uploads are serialized by the recognition backend's own
// dispatch, not here.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	// Reject before any pipeline work begins.
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are supported")
		return
	}

	tmp, err := os.CreateTemp("", "platmaster-upload-*.pdf")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create upload temp file")
		writeError(w, http.StatusInternalServerError, "Error processing PDF")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		s.log.Error().Err(err).Msg("Failed to buffer upload")
		writeError(w, http.StatusInternalServerError, "Error processing PDF")
		return
	}
	tmp.Close()

	s.log.Info().Str("file", header.Filename).Msg("Processing uploaded plat")

	var sink *annotate.Sink // no debug artifacts in service mode
	result, err := s.pipeline.ProcessDocument(r.Context(), tmp.Name(), sink)
	if err != nil {
		// Internal failures get a generic payload, not partial pipeline state.
		s.log.Error().Err(err).Str("file", header.Filename).Msg("Pipeline failed")
		writeError(w, http.StatusInternalServerError, "Error processing PDF")
		return
	}

	s.log.Info().Str("file", header.Filename).Msg("Upload processed")
	writeJSON(w, http.StatusOK, result)
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "PlatMaster API"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "PlatMaster API",
		"description": "Extract structured data from oil and gas well location plats",
		"endpoints": map[string]string{
			"/extract": "POST - Upload PDF file for data extraction",
			"/health":  "GET - Health check",
		},
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
