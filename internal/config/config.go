// Package config assembles opptrack's runtime configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. the TOML config store (~/.opptrack/config.toml)
//  3. a .env file, if present
//  4. process environment variables
//
// Environment names follow the deployment convention of the hosted
// service (LLM_API_BASE_URL, EMBEDDING_MODEL_NAME, POSTGRES_DB_HOST, ...).
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// OCR engines.
const (
	EngineCLI       = "cli"
	EngineTesseract = "tesseract"
)

// Config is the complete runtime configuration.
type Config struct {
	Storage   StorageConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	OCR       OCRConfig
	Pipeline  PipelineConfig
	Queue     QueueConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

// StorageConfig selects and locates the persistence gateway.
type StorageConfig struct {
	Backend  string
	DataDir  string
	BlobDir  string
	Postgres PostgresConfig
}

// PostgresConfig holds connection parts for the Postgres backend.
// URL, when set, is used verbatim instead of the parts.
type PostgresConfig struct {
	URL      string
	Name     string
	User     string
	Password string
	Host     string
	Port     int
	MaxConns int
}

// EmbeddingConfig configures the provider and the batching client.
type EmbeddingConfig struct {
	Provider          domain.AIProvider
	BaseURL           string
	Model             string
	APIKey            string
	BatchSize         int
	Concurrency       int
	MaxRetries        int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// LLMConfig configures the optional cluster summariser.
type LLMConfig struct {
	Provider domain.AIProvider
	BaseURL  string
	Model    string
	APIKey   string
}

// OCRConfig configures the fallback for low-yield pages.
type OCRConfig struct {
	Enabled  bool
	Engine   string
	Language string
	DPI      int
	Timeout  time.Duration
}

// PipelineConfig holds yield and chunking parameters.
type PipelineConfig struct {
	ChunkSize  int
	Overlap    int
	MinChars   int
	MinDensity float64
}

// QueueConfig sizes the multi-document worker pool.
type QueueConfig struct {
	Workers int
	Size    int
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string
}

// SchedulerConfig sets how often interrupted documents are resumed and
// insights rebuilt. A zero interval disables that task.
type SchedulerConfig struct {
	Enabled         bool
	ResumeInterval  time.Duration
	RebuildInterval time.Duration
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".opptrack")

	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: filepath.Join(root, "data"),
			BlobDir: filepath.Join(root, "blobs"),
			Postgres: PostgresConfig{
				Port:     5432,
				MaxConns: 10,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:          domain.AIProviderOllama,
			BatchSize:         32,
			Concurrency:       4,
			MaxRetries:        3,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             10,
		},
		OCR: OCRConfig{
			Enabled:  true,
			Engine:   EngineCLI,
			Language: "eng",
			DPI:      300,
			Timeout:  2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			ChunkSize: 1000,
			Overlap:   200,
			MinChars:  200,
		},
		Queue: QueueConfig{
			Workers: 4,
			Size:    64,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			ResumeInterval:  15 * time.Minute,
			RebuildInterval: 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load layers store, the optional dotenv file and the process
// environment over the defaults. store may be nil. A missing envFile is
// ignored; an unreadable one is an error.
func Load(store driven.ConfigStore, envFile string) (*Config, error) {
	cfg := Default()

	if store != nil {
		if err := cfg.applyStore(store); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyStore copies every known key present in store.
func (c *Config) applyStore(store driven.ConfigStore) error {
	for _, key := range store.Keys() {
		f, ok := fields[key]
		if !ok {
			continue
		}
		val, _ := store.Get(key)
		if err := f.set(c, val); err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
	}
	return nil
}

// applyEnv applies environment overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	backendSet := false
	for _, b := range envBindings {
		v, ok := lookup(b.env)
		if !ok || v == "" {
			continue
		}
		if err := fields[b.key].set(c, v); err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
		if b.key == KeyStorageBackend {
			backendSet = true
		}
	}

	// The hosted deployment configures Postgres purely through
	// POSTGRES_DB_*; treat a host there as choosing the backend.
	if !backendSet {
		if v, _ := lookup("POSTGRES_DB_HOST"); v != "" {
			c.Storage.Backend = BackendPostgres
		}
	}

	// An OpenAI-compatible base URL without a provider means openai.
	if p, _ := lookup("EMBEDDING_PROVIDER"); p == "" {
		if v, _ := lookup("EMBEDDING_API_BASE_URL"); v != "" {
			c.Embedding.Provider = domain.AIProviderOpenAI
		}
	}
	if p, _ := lookup("LLM_PROVIDER"); p == "" {
		if v, _ := lookup("LLM_API_BASE_URL"); v != "" {
			c.LLM.Provider = domain.AIProviderOpenAI
		}
	}
	return nil
}

// Validate reports every invalid setting, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.DataDir == "" {
			add("storage.data_dir is required for sqlite")
		}
	case BackendPostgres:
		if c.Storage.Postgres.URL == "" && c.Storage.Postgres.Host == "" {
			add("storage.postgres.host or storage.postgres.url is required for postgres")
		}
	case BackendMemory:
	default:
		add("storage.backend %q is not one of sqlite, postgres, memory", c.Storage.Backend)
	}
	if c.Storage.Backend != BackendMemory && c.Storage.BlobDir == "" {
		add("storage.blob_dir is required")
	}

	if !c.Embedding.Provider.SupportsEmbeddings() {
		add("embedding.provider %q does not support embeddings", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize < 1 {
		add("embedding.batch_size must be at least 1")
	}
	if c.Embedding.Concurrency < 1 {
		add("embedding.concurrency must be at least 1")
	}
	if c.Embedding.MaxRetries < 0 {
		add("embedding.max_retries must not be negative")
	}
	if c.Embedding.Timeout <= 0 {
		add("embedding.timeout must be positive")
	}

	if c.LLM.Provider != "" && !c.LLM.Provider.IsValid() {
		add("llm.provider %q is not recognised", c.LLM.Provider)
	}

	if c.OCR.Enabled {
		if c.OCR.Engine != EngineCLI && c.OCR.Engine != EngineTesseract {
			add("ocr.engine %q is not one of cli, tesseract", c.OCR.Engine)
		}
		if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
			add("ocr.dpi %d is outside 72..1200", c.OCR.DPI)
		}
	}

	if c.Pipeline.ChunkSize < 1 {
		add("pipeline.chunk_size must be at least 1")
	}
	if c.Pipeline.Overlap < 0 {
		add("pipeline.overlap must not be negative")
	}
	if c.Pipeline.MinChars < 0 {
		add("pipeline.min_chars must not be negative")
	}
	if c.Queue.Workers < 1 {
		add("queue.workers must be at least 1")
	}
	if c.Queue.Size < 1 {
		add("queue.size must be at least 1")
	}
	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			add("server.addr %q: %v", c.Server.Addr, err)
		}
	}
	if c.Scheduler.ResumeInterval < 0 || c.Scheduler.RebuildInterval < 0 {
		add("scheduler intervals must not be negative")
	}

	return errors.Join(errs...)
}

// EmbeddingSettings returns the provider settings for the AI factory.
// Empty model and base URL fall back to the provider defaults.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	model := c.Embedding.Model
	if model == "" {
		model = domain.DefaultEmbeddingModels()[c.Embedding.Provider]
	}
	return &domain.EmbeddingSettings{
		Provider: c.Embedding.Provider,
		Model:    model,
		BaseURL:  c.Embedding.BaseURL,
		APIKey:   c.Embedding.APIKey,
	}
}

// LLMSettings returns the provider settings for the AI factory. The
// model falls back to the provider default.
func (c *Config) LLMSettings() *domain.LLMSettings {
	model := c.LLM.Model
	if model == "" {
		model = domain.DefaultLLMModels()[c.LLM.Provider]
	}
	return &domain.LLMSettings{
		Provider: c.LLM.Provider,
		Model:    model,
		BaseURL:  c.LLM.BaseURL,
		APIKey:   c.LLM.APIKey,
	}
}

// SchedulerSettings returns the task schedule for the scheduler service.
func (c *Config) SchedulerSettings() domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Enabled: c.Scheduler.Enabled,
		Resume: domain.TaskConfig{
			Enabled:  c.Scheduler.ResumeInterval > 0,
			Interval: c.Scheduler.ResumeInterval,
		},
		Rebuild: domain.TaskConfig{
			Enabled:  c.Scheduler.RebuildInterval > 0,
			Interval: c.Scheduler.RebuildInterval,
		},
	}
}

// PostgresDSN returns the connection URL for the Postgres backend.
func (c *Config) PostgresDSN() string {
	pg := c.Storage.Postgres
	if pg.URL != "" {
		return pg.URL
	}
	port := pg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(pg.Host, strconv.Itoa(port)),
		Path:   "/" + pg.Name,
	}
	if pg.User != "" {
		if pg.Password != "" {
			u.User = url.UserPassword(pg.User, pg.Password)
		} else {
			u.User = url.User(pg.User)
		}
	}
	return u.String()
}

// parseDuration accepts "30s" style strings or integer seconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
