package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/opptrack/cgo/tesseract"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/ai"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/config/file"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/prompts"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/blob"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/cli"
	"github.com/custodia-labs/opptrack/internal/config"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/services"
	"github.com/custodia-labs/opptrack/internal/embedding"
	"github.com/custodia-labs/opptrack/internal/extractors/pdf"
	"github.com/custodia-labs/opptrack/internal/logger"
	"github.com/custodia-labs/opptrack/internal/ocr"
	"github.com/custodia-labs/opptrack/internal/postprocessors"
	"github.com/custodia-labs/opptrack/internal/postprocessors/analysis"
	"github.com/custodia-labs/opptrack/internal/postprocessors/chunker"
)

// wiring implements cli.Loader.
type wiring struct{}

var _ cli.Loader = wiring{}

// LoadConfig opens the config file and layers the environment over it.
func (wiring) LoadConfig(opts cli.Options) (driven.ConfigStore, *config.Config, error) {
	var (
		store driven.ConfigStore
		err   error
	)
	switch {
	case opts.Ephemeral:
		store = memory.NewConfigStore()
	case opts.ConfigPath != "":
		store, err = file.Open(opts.ConfigPath)
	default:
		store, err = file.NewConfigStore("")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}

	cfg, err := config.Load(store, opts.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	if opts.Ephemeral {
		cfg.Storage.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return store, cfg, nil
}

// Build assembles storage, the pipeline stages and the services.
func (wiring) Build(ctx context.Context, cfg *config.Config, _ cli.Options) (*cli.Services, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*cli.Services, error) {
		_ = closeAll()
		return nil, err
	}

	store, schedStore, err := openStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, store.Close)

	blobs, err := openBlobs(cfg)
	if err != nil {
		return fail(err)
	}

	policy := domain.YieldPolicy{MinChars: cfg.Pipeline.MinChars, MinDensity: cfg.Pipeline.MinDensity}
	extractor := pdf.New(pdf.WithMinChars(policy.MinChars), pdf.WithMinDensity(policy.MinDensity))

	pipeline, err := postprocessors.DefaultRegistry().BuildPipeline(postprocessors.DefaultOrder, map[string]postprocessors.Settings{
		chunker.Name: {"chunk_size": cfg.Pipeline.ChunkSize, "overlap": cfg.Pipeline.Overlap},
	})
	if err != nil {
		return fail(fmt.Errorf("building post-processors: %w", err))
	}

	aiServices, err := ai.Build(cfg.EmbeddingSettings(), cfg.LLMSettings())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() error {
		aiServices.Close()
		return nil
	})

	ingestOpts := []services.IngestorOption{services.WithWorkers(cfg.Queue.Workers)}

	// Left as a nil interface without a provider: queries still work.
	var embedder driven.Embedder
	if aiServices.Embedding != nil {
		embedder = embedding.NewClient(aiServices.Embedding,
			embedding.WithBatchSize(cfg.Embedding.BatchSize),
			embedding.WithConcurrency(cfg.Embedding.Concurrency),
			embedding.WithMaxRetries(cfg.Embedding.MaxRetries),
			embedding.WithCallTimeout(cfg.Embedding.Timeout),
			embedding.WithRateLimit(embedding.RateLimitConfig{
				RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
				BurstSize:         cfg.Embedding.Burst,
			}),
		)
	} else {
		ingestOpts = append(ingestOpts, services.WithEmbeddingUnavailable(aiServices.EmbeddingErr))
	}
	warnings := append([]string(nil), aiServices.Warnings...)
	if cfg.OCR.Enabled {
		fallback, err := ocr.NewFallback(ocr.NewPopplerRasterizer(), ocrEngine(cfg.OCR),
			ocr.WithPolicy(policy),
			ocr.WithDPI(cfg.OCR.DPI),
			ocr.WithTimeout(cfg.OCR.Timeout),
		)
		if err != nil {
			return fail(fmt.Errorf("configuring OCR: %w", err))
		}
		ingestOpts = append(ingestOpts, services.WithOCR(fallback))
	} else {
		warnings = append(warnings, "OCR disabled: documents with scanned pages will fail")
	}

	promptStore, err := prompts.NewPromptStore("")
	if err != nil {
		return fail(err)
	}

	aggregator := services.NewAggregator(store, analysis.New(), services.NewKeyedMutex())
	ingestor := services.NewIngestor(store, blobs, extractor, pipeline, embedder, aggregator, ingestOpts...)
	insights := services.NewInsightQuery(store, aggregator, aiServices.LLM, promptStore)
	queue := services.NewQueue(ingestor.Ingest,
		services.WithQueueWorkers(cfg.Queue.Workers),
		services.WithQueueSize(cfg.Queue.Size),
		services.WithResultHandler(func(r services.Result) {
			if r.Err != nil {
				logger.Warn("ingest %s: %v", r.DocumentID, r.Err)
				return
			}
			logger.Info("ingested %s", r.DocumentID)
		}),
	)

	return &cli.Services{
		Ingest:    ingestor,
		Insights:  insights,
		Queue:     queue,
		Scheduler: services.NewScheduler(cfg.SchedulerSettings(), schedStore, ingestor, insights),
		Probe:     ai.NewProber(0),
		Warnings:  warnings,
		Close:     closeAll,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (driven.Store, driven.SchedulerStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		s := memory.NewStore()
		return s, s.SchedulerStore(), nil
	case config.BackendPostgres:
		pc := postgres.DefaultConfig(cfg.PostgresDSN())
		if cfg.Storage.Postgres.MaxConns > 0 {
			pc.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
		}
		s, err := postgres.NewStore(ctx, pc)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		return s, s.SchedulerStore(), nil
	default:
		s, err := sqlite.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return s, s.SchedulerStore(), nil
	}
}

func openBlobs(cfg *config.Config) (driven.BlobStore, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return memory.NewBlobStore(), nil
	}
	dir := cfg.Storage.BlobDir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataDir, "blobs")
	}
	s, err := blob.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	return s, nil
}

// ocrEngine picks the recogniser. The in-process engine needs a cgo
// build; without one the tesseract binary is used instead.
func ocrEngine(cfg config.OCRConfig) driven.OCREngine {
	if cfg.Engine == config.EngineTesseract {
		if tesseract.Available() {
			return tesseract.New(tesseract.WithLanguages(strings.Split(cfg.Language, "+")...))
		}
		logger.Warn("ocr.engine=tesseract needs a cgo build; using the tesseract binary")
	}
	return ocr.NewCLIEngine(ocr.WithLanguage(cfg.Language))
}
