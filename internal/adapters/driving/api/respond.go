package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("api: %v", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var failure *domain.IngestFailure
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIngestInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLLMUnavailable), errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrMalformedLLMResponse):
		return http.StatusBadGateway
	case errors.As(err, &failure):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// requestLogger logs one line per request, skipping the given paths.
func requestLogger(skip ...string) func(http.Handler) http.Handler {
	excluded := make(map[string]bool, len(skip))
	for _, p := range skip {
		excluded[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excluded[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(),
				time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
		})
	}
}

// failureView is the JSON form of domain.Failure.
type failureView struct {
	Kind      domain.ErrorKind `json:"kind"`
	Stage     domain.Stage     `json:"stage"`
	Message   string           `json:"message"`
	Transient bool             `json:"transient"`
	At        time.Time        `json:"at"`
}

// documentView is the JSON form of a document and its live state.
type documentView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Industry    string         `json:"industry"`
	Outcome     domain.Outcome `json:"outcome"`
	Status      domain.Status  `json:"status"`
	Checkpoint  domain.Status  `json:"checkpoint,omitempty"`
	Version     int            `json:"version"`
	PageCount   int            `json:"page_count"`
	ContentHash string         `json:"content_hash"`
	Failure     *failureView   `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Running    bool         `json:"running,omitempty"`
	Stage      domain.Stage `json:"stage,omitempty"`
	Pages      *int         `json:"pages,omitempty"`
	OCRPages   *int         `json:"ocr_pages,omitempty"`
	Chunks     *int         `json:"chunks,omitempty"`
	Embeddings *int         `json:"embeddings,omitempty"`
}

func newDocumentView(d *domain.Document) documentView {
	v := documentView{
		ID:          d.ID,
		Name:        d.Name,
		Industry:    d.Industry,
		Outcome:     d.Outcome,
		Status:      d.Status,
		Version:     d.Version,
		PageCount:   d.PageCount,
		ContentHash: d.ContentHash,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Checkpoint != d.Status {
		v.Checkpoint = d.Checkpoint
	}
	if f := d.Failure; f != nil {
		v.Failure = &failureView{
			Kind:      f.Kind,
			Stage:     f.Stage,
			Message:   f.Message,
			Transient: f.Transient,
			At:        f.At,
		}
	}
	return v
}

func newStatusView(st *driving.IngestStatus) documentView {
	v := newDocumentView(&st.Document)
	v.Running = st.Running
	v.Stage = st.Stage
	v.Pages = &st.Pages
	v.OCRPages = &st.OCRPages
	v.Chunks = &st.Chunks
	v.Embeddings = &st.Embeddings
	return v
}
