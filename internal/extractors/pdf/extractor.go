// Package pdf extracts machine-readable text from PDF content streams,
// one page at a time, and flags pages that yield too little text.
package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// US Letter, used when a page has no usable MediaBox.
const (
	defaultWidth  = 612.0
	defaultHeight = 792.0
)

// Extractor implements driven.TextExtractor using ledongthuc/pdf.
type Extractor struct {
	policy domain.YieldPolicy
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinChars sets the absolute low-yield threshold.
func WithMinChars(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.policy.MinChars = n
		}
	}
}

// WithMinDensity sets the area-relative low-yield threshold in glyphs
// per square inch.
func WithMinDensity(d float64) Option {
	return func(e *Extractor) {
		if d >= 0 {
			e.policy.MinDensity = d
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{policy: domain.DefaultYieldPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the yield policy in use.
func (e *Extractor) Policy() domain.YieldPolicy {
	return e.policy
}

// Extract reads every page of data. Pages whose content cannot be decoded
// come back with empty text and are flagged low-yield.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*driven.Extraction, error) {
	reader, err := openReader(data)
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("no pages: %w", domain.ErrUnreadableDocument)
	}

	pages := make([]domain.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		text, area := readPage(page, i)
		glyphs, ratio := domain.CountGlyphs(text)

		p := domain.Page{
			Index:      i - 1,
			Text:       text,
			Method:     domain.MethodDirect,
			CharCount:  glyphs,
			GlyphRatio: ratio,
			Area:       area,
			LowYield:   e.policy.IsLowYield(glyphs, area),
		}
		if p.LowYield {
			logger.Debug("page %d low-yield: %d glyphs < %d", p.Index, glyphs, e.policy.Threshold(area))
		}
		pages = append(pages, p)
	}

	return &driven.Extraction{Pages: pages}, nil
}

// openReader parses the PDF container. The parser panics on some
// malformed inputs, so panics are reported as unreadable documents.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("parse pdf: %v: %w", rec, domain.ErrUnreadableDocument)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("empty input: %w", domain.ErrUnreadableDocument)
	}
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %v: %w", err, domain.ErrUnreadableDocument)
	}
	return r, nil
}

func readPage(page pdf.Page, num int) (text string, area float64) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("page %d: text decode panicked: %v", num-1, rec)
			text = ""
		}
	}()

	area = pageArea(page)
	if page.V.IsNull() {
		return "", area
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		logger.Warn("page %d: text decode failed: %v", num-1, err)
		return "", area
	}
	return text, area
}

// pageArea returns the MediaBox area in square points, following the
// page tree for inherited boxes.
func pageArea(page pdf.Page) float64 {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() != 4 {
			continue
		}
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w < 0 {
			w = -w
		}
		if h < 0 {
			h = -h
		}
		if w > 0 && h > 0 {
			return w * h
		}
	}
	return defaultWidth * defaultHeight
}
