// Package web provides the HTTP server for batch mail-merge runs: upload a
// contact CSV, watch the outcome, and query the attempt log.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/outboundkit/mailmerge/internal/attemptlog"
	"github.com/outboundkit/mailmerge/internal/batch"
	"github.com/outboundkit/mailmerge/internal/contacts"
	"github.com/outboundkit/mailmerge/internal/dispatch"
	"github.com/outboundkit/mailmerge/internal/generate"
	"github.com/outboundkit/mailmerge/internal/logging"
	"github.com/outboundkit/mailmerge/internal/util"
)

//go:embed templates
var templateFiles embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFiles, "templates/index.html"))

// Options carries the collaborators the handlers need. Generator and
// Transport may be the Disabled implementations when unconfigured; the
// handlers still work, recording failures instead of sends.
type Options struct {
	Runner     *batch.Runner
	Generator  generate.Generator
	Transport  dispatch.Transport
	Log        attemptlog.Log
	Normalizer *contacts.Normalizer

	// Template is the default prompt template when the request carries none.
	Template string

	// CSVPath is the preconfigured contact file served by /view-data.
	CSVPath string
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	router *chi.Mux
	server *http.Server
}

func NewServer(opts Options) *Server {
	if opts.Normalizer == nil {
		opts.Normalizer = contacts.NewNormalizer(nil)
	}
	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Minute))
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Post("/process-emails", s.handleProcessEmails)
	s.router.Get("/stats", s.handleStats)
	s.router.Get("/view-data", s.handleViewData)
	s.router.Get("/generate-test-email", s.handleGenerateTestEmail)
	s.router.Get("/send-test-email", s.handleSendTestEmail)
}

// Start begins listening for HTTP requests and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	slog.Info("server_listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLogger emits one slog line per request, carrying the chi request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context()).Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// writeError writes a JSON error response. The message is redacted before it
// leaves the process since upstream errors can carry credentials.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`+"\n", util.RedactSecrets(message))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode", "error", err)
	}
}
