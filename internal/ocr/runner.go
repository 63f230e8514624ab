package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Runner executes external commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name and returns its stdout. Stderr is folded into the
// error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// ErrToolNotFound is returned by CheckAvailable when a binary is missing.
var ErrToolNotFound = errors.New("ocr tool not found in PATH")

// CheckAvailable verifies pdftoppm and tesseract can be found.
func CheckAvailable() error {
	for _, tool := range []string{DefaultPdftoppm, DefaultTesseract} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s: %w", tool, ErrToolNotFound)
		}
	}
	return nil
}

// InstallInstructions explains how to install the OCR runtime.
func InstallInstructions() string {
	return `OCR fallback requires poppler (pdftoppm) and tesseract.
  macOS:  brew install poppler tesseract
  Debian: apt install poppler-utils tesseract-ocr`
}

// unavailable marks err as an engine invocation failure.
func unavailable(what string, err error) error {
	if errors.Is(err, domain.ErrOCREngineUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", what, err, domain.ErrOCREngineUnavailable)
}
