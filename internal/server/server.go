// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/nisa-chat/internal/sse"
	"github.com/jeranaias/nisa-chat/internal/submit"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultPartialDelay spaces scripted partial frames.
	DefaultPartialDelay = 40 * time.Millisecond

	// MaxRequestBodySize bounds a query body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxUploadSize bounds a multipart upload (200MB).
	MaxUploadSize = 200 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// Route variants, used as the metrics label and passed to scripts.
const (
	VariantFast     = "flash"
	VariantAdvanced = "thinking"
	VariantDocument = "pdf"
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the development archive backend. It speaks the same wire
// protocol as the production service with scripted answers.
type Server struct {
	addr   string
	router chi.Router
	server *http.Server
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics

	mu         sync.RWMutex
	askScript  AskScriptFunc
	fileScript TranscriptScriptFunc
	pdfQuery   func(filename string) string
	started    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAskScript replaces the reply to query streams.
func WithAskScript(fn AskScriptFunc) Option {
	return func(s *Server) { s.askScript = fn }
}

// WithTranscriptScript replaces the reply to transcription streams.
func WithTranscriptScript(fn TranscriptScriptFunc) Option {
	return func(s *Server) { s.fileScript = fn }
}

// WithPartialDelay sets the spacing of partial frames in the default
// scripts.
func WithPartialDelay(d time.Duration) Option {
	return func(s *Server) {
		s.askScript = DefaultAskScript(d)
		s.fileScript = DefaultTranscriptScript(d)
	}
}

// New creates a Server. Each server has its own metrics registry.
func New(opts ...Option) *Server {
	s := &Server{
		addr:       DefaultAddr,
		logger:     slog.Default(),
		registry:   prometheus.NewRegistry(),
		askScript:  DefaultAskScript(DefaultPartialDelay),
		fileScript: DefaultTranscriptScript(DefaultPartialDelay),
		pdfQuery: func(filename string) string {
			return fmt.Sprintf("Quais fundos do arquivo tratam dos assuntos do documento %s?", filename)
		},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registry)
	s.setupRoutes()
	return s
}

// SetAskScript swaps the query script of a running server.
func (s *Server) SetAskScript(fn AskScriptFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.askScript = fn
}

// SetTranscriptScript swaps the transcription script of a running server.
func (s *Server) SetTranscriptScript(fn TranscriptScriptFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileScript = fn
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(s.metrics.middleware)
	r.Use(middleware.Recoverer)

	r.Post("/ask-stream-flash", s.handleAsk(VariantFast))
	r.Post("/ask-stream", s.handleAsk(VariantAdvanced))
	r.Post("/ask-pdf-stream", s.handleAsk(VariantDocument))
	r.Post("/process-pdf", s.handleProcessPDF)
	r.Post("/transcribe-audio-stream", s.handleTranscribe)
	r.Post("/transcribe-video-stream", s.handleTranscribe)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router = r
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleAsk(variant string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

		var req submit.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			s.writeError(w, http.StatusUnprocessableEntity, "consulta is required")
			return
		}

		s.mu.RLock()
		script := s.askScript(variant, req)
		s.mu.RUnlock()

		s.logger.Info("query received", "variant", variant,
			"query_len", len(req.Query), "history", len(req.History))
		s.play(w, r, variant, script)
	}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	filename, size, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	script := s.fileScript(filename, size)
	s.mu.RUnlock()

	s.logger.Info("transcription requested", "file", filename, "size", size)
	s.play(w, r, "transcribe", script)
}

func (s *Server) handleProcessPDF(w http.ResponseWriter, r *http.Request) {
	filename, _, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		s.writeError(w, http.StatusUnsupportedMediaType, "file must be a PDF")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"query": s.pdfQuery(filename)})
}

// readUpload drains the "file" part and returns its name and size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, int64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return "", 0, fmt.Errorf("missing file field: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		return "", 0, fmt.Errorf("read upload: %w", err)
	}
	return hdr.Filename, n, nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

// ============================================================================
// STREAMING
// ============================================================================

// play writes script to w, stopping early when the client goes away.
func (s *Server) play(w http.ResponseWriter, r *http.Request, route string, script Script) {
	if script.Status != 0 && (script.Status < 200 || script.Status > 299) {
		http.Error(w, script.Body, script.Status)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.metrics.streams.Inc()
	defer s.metrics.streams.Dec()

	ctx := r.Context()
	for _, step := range script.Steps {
		if step.Delay > 0 {
			t := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				s.logger.Debug("client went away", "route", route)
				return
			case <-t.C:
			}
		}
		if step.Event.Data == "" {
			continue
		}
		if err := sse.WriteEvent(w, step.Event); err != nil {
			s.logger.Debug("stream write failed", "route", route, "error", err)
			return
		}
		flusher.Flush()
		s.metrics.events.WithLabelValues(route, step.Event.Type).Inc()
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: streams stay open until the script ends.
	}

	s.logger.Info("server starting", "addr", s.addr, "version", Version)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"detail": message,
	})
}
