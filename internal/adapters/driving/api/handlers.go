package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleConfigCheck reports configuration presence. With ?probe=true the
// configured providers are also pinged.
func (s *Server) handleConfigCheck(w http.ResponseWriter, r *http.Request) {
	if s.ports.Config == nil {
		writeError(w, fmt.Errorf("configuration not loaded: %w", domain.ErrNotFound))
		return
	}
	check := s.ports.Config.Masked()

	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	if !probe || s.ports.Probe == nil {
		writeJSON(w, http.StatusOK, check)
		return
	}

	// Provider failures are part of the report, not a request error.
	report, _ := s.ports.Config.Probe(r.Context(), s.ports.Probe)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := driving.DocumentFilter{
		Status:   domain.Status(q.Get("status")),
		Industry: q.Get("industry"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, fmt.Errorf("status %q: %w", filter.Status, domain.ErrInvalidInput))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("limit %q: %w", raw, domain.ErrInvalidInput))
			return
		}
		filter.Limit = n
	}

	docs, err := s.ports.Ingest.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]documentView, len(docs))
	for i := range docs {
		out[i] = newDocumentView(&docs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// handleUpload accepts a multipart form with one or more "files" parts,
// an "industry" and an optional "outcome".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("parse upload: %v: %w", err, domain.ErrInvalidInput))
		return
	}

	outcome, err := domain.ParseOutcome(r.FormValue("outcome"))
	if err != nil {
		writeError(w, fmt.Errorf("outcome %q: %w", r.FormValue("outcome"), err))
		return
	}
	industry := r.FormValue("industry")
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, fmt.Errorf("no files uploaded: %w", domain.ErrInvalidInput))
		return
	}

	out := make([]documentView, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			writeError(w, fmt.Errorf("open %s: %w", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			writeError(w, fmt.Errorf("read %s: %w", fh.Filename, err))
			return
		}

		doc, err := s.ports.Ingest.Submit(r.Context(), driving.SubmitRequest{
			Name:     fh.Filename,
			Industry: industry,
			Outcome:  outcome,
			Data:     data,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		s.enqueue(doc)
		out = append(out, newDocumentView(doc))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"documents": out})
}

func (s *Server) enqueue(doc *domain.Document) {
	if s.ports.Queue == nil || doc.Status == domain.StatusDone {
		return
	}
	if err := s.ports.Queue.Enqueue(s.base, doc.ID, driving.IngestOptions{}); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("api: document %s left pending: %v", doc.ID, err)
		}
	}
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ports.Ingest.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(st))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Ingest.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListIndustries(w http.ResponseWriter, r *http.Request) {
	limit := driving.DefaultIndustryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > driving.MaxIndustryLimit {
			writeError(w, fmt.Errorf("limit must be an integer in [1, %d]: %w",
				driving.MaxIndustryLimit, domain.ErrInvalidInput))
			return
		}
		limit = n
	}

	industries, err := s.ports.Insights.ListIndustries(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if industries == nil {
		industries = []driving.IndustrySummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"industries": industries})
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	insight, err := s.ports.Insights.GetInsight(r.Context(), industryParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	report, err := s.ports.Insights.Clusters(r.Context(), industryParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	insights, err := s.ports.Insights.Summarise(r.Context(), industryParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	insight, err := s.ports.Insights.Rebuild(r.Context(), industryParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// industryParam returns the decoded {industry} path segment.
func industryParam(r *http.Request) string {
	raw := chi.URLParam(r, "industry")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
