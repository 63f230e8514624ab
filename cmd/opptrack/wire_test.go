package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/cli"
	"github.com/custodia-labs/opptrack/internal/config"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

func TestLoadConfig_Ephemeral(t *testing.T) {
	store, cfg, err := wiring{}.LoadConfig(cli.Options{Ephemeral: true, EnvFile: filepath.Join(t.TempDir(), "none.env")})

	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Equal(t, config.BackendMemory, cfg.Storage.Backend)
}

func TestLoadConfig_ConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ocr]\nlanguage = \"deu\"\n"), 0o600))

	store, cfg, err := wiring{}.LoadConfig(cli.Options{ConfigPath: path, EnvFile: filepath.Join(dir, "none.env")})

	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	assert.Equal(t, "deu", cfg.OCR.Language)
}

func TestBuild_Ephemeral(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory

	s, err := wiring{}.Build(context.Background(), cfg, cli.Options{Ephemeral: true})

	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s.Ingest)
	assert.NotNil(t, s.Insights)
	assert.NotNil(t, s.Queue)
	assert.NotNil(t, s.Scheduler)
	assert.NotNil(t, s.Probe)
	assert.NotEmpty(t, s.Warnings, "no LLM is configured by default")
}

func TestBuild_WithoutEmbeddingProvider(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Embedding.Provider = ""

	s, err := wiring{}.Build(ctx, cfg, cli.Options{Ephemeral: true})
	require.NoError(t, err)
	defer s.Close()
	assert.Contains(t, strings.Join(s.Warnings, "\n"), "ingestion disabled")

	industries, err := s.Insights.ListIndustries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, industries)

	doc, err := s.Ingest.Submit(ctx, driving.SubmitRequest{Name: "a.pdf", Industry: "retail", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	_, err = s.Ingest.Ingest(ctx, doc.ID, driving.IngestOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestOCREngine(t *testing.T) {
	assert.Equal(t, "tesseract-cli", ocrEngine(config.OCRConfig{Engine: config.EngineCLI, Language: "eng"}).Name())
}
