// Package api serves opptrack's HTTP interface: health and configuration
// checks, document upload and status, and the insight query surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/opptrack/internal/config"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// MaxUploadBytes bounds a multipart upload.
const MaxUploadBytes = 64 << 20

// ErrMissingIngestService is returned when the ingest service is not provided.
var ErrMissingIngestService = errors.New("api: ingest service is required")

// ErrMissingInsightService is returned when the insight service is not provided.
var ErrMissingInsightService = errors.New("api: insight service is required")

// Enqueuer accepts documents for background ingestion.
type Enqueuer interface {
	Enqueue(ctx context.Context, documentID string, opts driving.IngestOptions) error
}

// Ports aggregates the services the HTTP server calls.
type Ports struct {
	Ingest   driving.IngestService
	Insights driving.InsightService

	// Queue runs uploaded documents. Without it uploads are stored
	// pending and picked up by the next resume.
	Queue Enqueuer

	// Config backs /config/check. Optional.
	Config *config.Config

	// Probe enables ?probe=true on /config/check. Optional.
	Probe driven.ProviderProbe
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ingest == nil {
		return ErrMissingIngestService
	}
	if p.Insights == nil {
		return ErrMissingInsightService
	}
	return nil
}

// Server is the HTTP API server.
type Server struct {
	ports  *Ports
	router chi.Router

	// base is the context uploaded documents are ingested under. It
	// outlives individual requests.
	base context.Context
}

// NewServer creates a server with its routes registered.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	s := &Server{ports: ports, base: context.Background()}
	s.router = s.routes()
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger("/health"))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/config/check", s.handleConfigCheck)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)
		r.Post("/", s.handleUpload)
		r.Get("/{id}", s.handleDocumentStatus)
		r.Delete("/{id}", s.handleDeleteDocument)
	})

	r.Route("/insights/industries", func(r chi.Router) {
		r.Get("/", s.handleListIndustries)
		r.Get("/{industry}", s.handleGetInsight)
		r.Get("/{industry}/clusters", s.handleClusters)
		r.Get("/{industry}/summary", s.handleSummary)
		r.Post("/{industry}/rebuild", s.handleRebuild)
	})

	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.base = ctx

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
