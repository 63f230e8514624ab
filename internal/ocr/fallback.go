package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Ensure Fallback implements the interface.
var _ driven.OCRFallback = (*Fallback)(nil)

// DefaultTimeout bounds a single rasterise + recognise call.
const DefaultTimeout = 2 * time.Minute

// Fallback recovers low-yield pages by rasterising and recognising them.
type Fallback struct {
	rasterizer driven.Rasterizer
	engine     driven.OCREngine
	policy     domain.YieldPolicy
	dpi        int
	timeout    time.Duration
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithPolicy sets the threshold below which OCR output marks a page empty.
func WithPolicy(p domain.YieldPolicy) FallbackOption {
	return func(f *Fallback) { f.policy = p }
}

// WithDPI sets the rasterisation resolution.
func WithDPI(dpi int) FallbackOption {
	return func(f *Fallback) {
		if dpi > 0 {
			f.dpi = dpi
		}
	}
}

// WithTimeout sets the per-page call timeout. Zero disables it.
func WithTimeout(d time.Duration) FallbackOption {
	return func(f *Fallback) { f.timeout = d }
}

// NewFallback creates a Fallback.
func NewFallback(r driven.Rasterizer, e driven.OCREngine, opts ...FallbackOption) (*Fallback, error) {
	if r == nil || e == nil {
		return nil, fmt.Errorf("rasterizer and engine are required: %w", domain.ErrOCREngineUnavailable)
	}
	f := &Fallback{
		rasterizer: r,
		engine:     e,
		policy:     domain.DefaultYieldPolicy(),
		dpi:        DefaultDPI,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Recover rasterises and recognises page. The returned page keeps its
// index and area, switches to the ocr method and carries the engine's
// confidence. Text still below the threshold marks the page empty.
func (f *Fallback) Recover(ctx context.Context, pdf []byte, page domain.Page) (domain.Page, error) {
	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	img, err := f.rasterizer.Rasterize(callCtx, pdf, page.Index, f.dpi)
	if err != nil {
		return page, f.wrap(ctx, err)
	}

	result, err := f.engine.Recognize(callCtx, img)
	if err != nil {
		return page, f.wrap(ctx, err)
	}

	glyphs, ratio := domain.CountGlyphs(result.Text)
	recovered := page
	recovered.Text = result.Text
	recovered.Method = domain.MethodOCR
	recovered.Confidence = clamp01(result.Confidence)
	recovered.CharCount = glyphs
	recovered.GlyphRatio = ratio
	recovered.LowYield = true
	recovered.Empty = f.policy.IsLowYield(glyphs, page.Area)

	if recovered.Empty {
		logger.Warn("page %d: %s recovered only %d glyphs, excluding page", page.Index, f.engine.Name(), glyphs)
	} else {
		logger.Debug("page %d: %s recovered %d glyphs (confidence %.2f)",
			page.Index, f.engine.Name(), glyphs, recovered.Confidence)
	}
	return recovered, nil
}

// wrap passes caller cancellation through untouched and reports
// everything else, per-call timeouts included, as an unavailable engine.
func (f *Fallback) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", f.engine.Name(), ctxErr)
	}
	return unavailable(f.engine.Name(), err)
}
