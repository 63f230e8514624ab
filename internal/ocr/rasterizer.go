package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure PopplerRasterizer implements the interface.
var _ driven.Rasterizer = (*PopplerRasterizer)(nil)

// Default binaries and resolution.
const (
	DefaultPdftoppm  = "pdftoppm"
	DefaultTesseract = "tesseract"
	DefaultDPI       = 300
)

// PopplerRasterizer renders pages with pdftoppm.
type PopplerRasterizer struct {
	runner Runner
	binary string
	tmpDir string
}

// RasterizerOption configures a PopplerRasterizer.
type RasterizerOption func(*PopplerRasterizer)

// WithRasterizerRunner replaces the command runner.
func WithRasterizerRunner(r Runner) RasterizerOption {
	return func(p *PopplerRasterizer) { p.runner = r }
}

// WithPdftoppm sets the pdftoppm binary name or path.
func WithPdftoppm(path string) RasterizerOption {
	return func(p *PopplerRasterizer) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithTempDir sets where intermediate files are written.
func WithTempDir(dir string) RasterizerOption {
	return func(p *PopplerRasterizer) { p.tmpDir = dir }
}

// NewPopplerRasterizer creates a rasterizer.
func NewPopplerRasterizer(opts ...RasterizerOption) *PopplerRasterizer {
	p := &PopplerRasterizer{runner: ExecRunner{}, binary: DefaultPdftoppm}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rasterize writes pdf to a scratch directory and renders the single
// requested page to PNG.
func (p *PopplerRasterizer) Rasterize(ctx context.Context, pdf []byte, pageIndex, dpi int) ([]byte, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	dir, err := os.MkdirTemp(p.tmpDir, "opptrack-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch pdf: %w", err)
	}

	page := strconv.Itoa(pageIndex + 1)
	prefix := filepath.Join(dir, "page")
	args := []string{"-f", page, "-l", page, "-r", strconv.Itoa(dpi), "-png", "-singlefile", in, prefix}
	if _, err := p.runner.Run(ctx, p.binary, args...); err != nil {
		return nil, unavailable("rasterize page "+page, err)
	}

	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, unavailable("read rasterized page "+page, err)
	}
	return img, nil
}
