package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure CLIEngine implements the interface.
var _ driven.OCREngine = (*CLIEngine)(nil)

// CLIEngine runs the tesseract binary in TSV mode, which yields both
// the words and their confidences in one pass.
type CLIEngine struct {
	runner      Runner
	binary      string
	lang        string
	psm         int
	tessdataDir string
	tmpDir      string
}

// CLIOption configures a CLIEngine.
type CLIOption func(*CLIEngine)

// WithCLIRunner replaces the command runner.
func WithCLIRunner(r Runner) CLIOption {
	return func(e *CLIEngine) { e.runner = r }
}

// WithTesseract sets the tesseract binary name or path.
func WithTesseract(path string) CLIOption {
	return func(e *CLIEngine) {
		if path != "" {
			e.binary = path
		}
	}
}

// WithLanguage sets the tesseract language, e.g. "eng" or "eng+deu".
func WithLanguage(lang string) CLIOption {
	return func(e *CLIEngine) {
		if lang != "" {
			e.lang = lang
		}
	}
}

// WithPSM sets the page segmentation mode.
func WithPSM(psm int) CLIOption {
	return func(e *CLIEngine) { e.psm = psm }
}

// WithTessdataDir points tesseract at a custom model directory.
func WithTessdataDir(dir string) CLIOption {
	return func(e *CLIEngine) { e.tessdataDir = dir }
}

// NewCLIEngine creates a tesseract CLI engine.
func NewCLIEngine(opts ...CLIOption) *CLIEngine {
	e := &CLIEngine{runner: ExecRunner{}, binary: DefaultTesseract, lang: "eng"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine in logs.
func (e *CLIEngine) Name() string { return "tesseract-cli" }

// Recognize runs tesseract over image.
func (e *CLIEngine) Recognize(ctx context.Context, image []byte) (driven.OCRResult, error) {
	dir, err := os.MkdirTemp(e.tmpDir, "opptrack-ocr-*")
	if err != nil {
		return driven.OCRResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "page.png")
	if err := os.WriteFile(in, image, 0o600); err != nil {
		return driven.OCRResult{}, fmt.Errorf("write scratch image: %w", err)
	}

	args := []string{in, "stdout", "-l", e.lang}
	if e.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(e.psm))
	}
	if e.tessdataDir != "" {
		args = append(args, "--tessdata-dir", e.tessdataDir)
	}
	args = append(args, "tsv")

	out, err := e.runner.Run(ctx, e.binary, args...)
	if err != nil {
		return driven.OCRResult{}, unavailable("tesseract", err)
	}
	return ParseTSV(string(out)), nil
}

// ParseTSV rebuilds text from tesseract TSV output and averages the word
// confidences into [0, 1]. Words on the same line are joined by spaces
// and lines by newlines.
func ParseTSV(tsv string) driven.OCRResult {
	var (
		text     strings.Builder
		sum      float64
		words    int
		lastLine string
	)

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 || word == "" {
			continue
		}

		lineKey := cols[1] + "/" + cols[2] + "/" + cols[3] + "/" + cols[4]
		switch {
		case text.Len() == 0:
		case lineKey != lastLine:
			text.WriteByte('\n')
		default:
			text.WriteByte(' ')
		}
		text.WriteString(word)
		lastLine = lineKey

		sum += conf
		words++
	}

	result := driven.OCRResult{Text: text.String()}
	if words > 0 {
		result.Confidence = clamp01(sum / float64(words) / 100)
	}
	return result
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
