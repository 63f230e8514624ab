//go:build cgo

package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Engine recognises images with a fresh gosseract client per call.
type Engine struct {
	languages     []string
	psm           int
	tessdata      string
	clientFactory func() *gosseract.Client
}

// New creates a gosseract-backed engine.
func New(opts ...Option) *Engine {
	e := &Engine{languages: []string{"eng"}, clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine in logs.
func (e *Engine) Name() string { return "gosseract" }

// Available reports whether this build can run the engine.
func Available() bool { return true }

type recognition struct {
	result driven.OCRResult
	err    error
}

// Recognize runs OCR over image. libtesseract calls cannot be
// interrupted, so on cancellation the call is abandoned and its client
// closed once it returns.
func (e *Engine) Recognize(ctx context.Context, image []byte) (driven.OCRResult, error) {
	done := make(chan recognition, 1)
	go func() {
		res, err := e.recognize(image)
		done <- recognition{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return driven.OCRResult{}, fmt.Errorf("gosseract: %w", ctx.Err())
	case r := <-done:
		return r.result, r.err
	}
}

func (e *Engine) recognize(image []byte) (driven.OCRResult, error) {
	c := e.clientFactory()
	if c == nil {
		return driven.OCRResult{}, fmt.Errorf("gosseract client: %w", domain.ErrOCREngineUnavailable)
	}
	defer c.Close()

	if e.tessdata != "" {
		if err := c.SetTessdataPrefix(e.tessdata); err != nil {
			return driven.OCRResult{}, unavailable("set tessdata", err)
		}
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return driven.OCRResult{}, unavailable("set languages", err)
	}
	if e.psm > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.psm)); err != nil {
			return driven.OCRResult{}, unavailable("set page segmentation", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return driven.OCRResult{}, unavailable("set image", err)
	}

	text, err := c.Text()
	if err != nil {
		return driven.OCRResult{}, unavailable("recognize", err)
	}

	return driven.OCRResult{
		Text:       strings.TrimSpace(text),
		Confidence: meanConfidence(c),
	}, nil
}

// meanConfidence averages word confidences into [0, 1].
func meanConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}

func unavailable(what string, err error) error {
	return fmt.Errorf("gosseract %s: %v: %w", what, err, domain.ErrOCREngineUnavailable)
}
