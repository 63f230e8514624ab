//go:build !cgo

package tesseract

import (
	"context"
	"fmt"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Engine is a stub for builds without CGO.
type Engine struct {
	languages []string
	psm       int
	tessdata  string
}

// New creates a stub engine.
func New(opts ...Option) *Engine {
	e := &Engine{languages: []string{"eng"}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine in logs.
func (e *Engine) Name() string { return "gosseract" }

// Available reports whether this build can run the engine.
func Available() bool { return false }

// Recognize always fails: libtesseract is not linked.
func (e *Engine) Recognize(_ context.Context, _ []byte) (driven.OCRResult, error) {
	return driven.OCRResult{}, fmt.Errorf("built without cgo: %w", domain.ErrOCREngineUnavailable)
}
