package tesseract

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

func TestNew_Options(t *testing.T) {
	e := New(WithLanguages("eng", "deu"), WithPageSegMode(6), WithTessdata("/models"))

	assert.Equal(t, "gosseract", e.Name())
	assert.Equal(t, []string{"eng", "deu"}, e.languages)
	assert.Equal(t, 6, e.psm)
	assert.Equal(t, "/models", e.tessdata)
}

func TestNew_EmptyLanguagesKeepsDefault(t *testing.T) {
	e := New(WithLanguages())
	assert.Equal(t, []string{"eng"}, e.languages)
}

func TestRecognize_NotAnImage(t *testing.T) {
	if !Available() {
		_, err := New().Recognize(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, domain.ErrOCREngineUnavailable)
		return
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract runtime not installed")
	}

	_, err := New().Recognize(context.Background(), []byte("definitely not a png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOCREngineUnavailable)
}
