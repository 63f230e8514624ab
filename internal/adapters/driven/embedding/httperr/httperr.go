// Package httperr turns provider client failures into
// *domain.EmbeddingError values the embedding client can retry on.
package httperr

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Classify maps an error from httpjson.Client. Nil and caller
// cancellation are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var statusErr *httpjson.StatusError
	if errors.As(err, &statusErr) {
		return fromStatus(statusErr)
	}
	if errors.Is(err, httpjson.ErrMalformed) {
		return domain.NewPermanentEmbeddingError(domain.ReasonMalformedResponse, 0, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewTransientEmbeddingError(domain.ReasonTimeout, 0, err)
	}
	return domain.NewTransientEmbeddingError(domain.ReasonNetwork, 0, err)
}

// Malformed reports a decoded response that still could not be used.
func Malformed(err error) *domain.EmbeddingError {
	return domain.NewPermanentEmbeddingError(domain.ReasonMalformedResponse, 0, err)
}

func fromStatus(e *httpjson.StatusError) *domain.EmbeddingError {
	switch code := e.Code; {
	case code == http.StatusTooManyRequests:
		out := domain.NewTransientEmbeddingError(domain.ReasonRateLimit, code, e)
		out.RetryAfter = e.RetryAfter
		return out
	case code == http.StatusRequestTimeout || code >= 500:
		return domain.NewTransientEmbeddingError(domain.ReasonServer, code, e)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.NewPermanentEmbeddingError(domain.ReasonAuth, code, e)
	default:
		return domain.NewPermanentEmbeddingError(domain.ReasonMalformedRequest, code, e)
	}
}
