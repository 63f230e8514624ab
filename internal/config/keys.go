package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Config store keys.
const (
	KeyStorageBackend   = "storage.backend"
	KeyStorageDataDir   = "storage.data_dir"
	KeyStorageBlobDir   = "storage.blob_dir"
	KeyPostgresURL      = "storage.postgres.url"
	KeyPostgresName     = "storage.postgres.name"
	KeyPostgresUser     = "storage.postgres.user"
	KeyPostgresPassword = "storage.postgres.password"
	KeyPostgresHost     = "storage.postgres.host"
	KeyPostgresPort     = "storage.postgres.port"
	KeyPostgresMaxConns = "storage.postgres.max_conns"

	KeyEmbeddingProvider    = "embedding.provider"
	KeyEmbeddingBaseURL     = "embedding.base_url"
	KeyEmbeddingModel       = "embedding.model"
	KeyEmbeddingAPIKey      = "embedding.api_key"
	KeyEmbeddingBatchSize   = "embedding.batch_size"
	KeyEmbeddingConcurrency = "embedding.concurrency"
	KeyEmbeddingMaxRetries  = "embedding.max_retries"
	KeyEmbeddingTimeout     = "embedding.timeout"
	KeyEmbeddingRate        = "embedding.requests_per_second"
	KeyEmbeddingBurst       = "embedding.burst"

	KeyLLMProvider = "llm.provider"
	KeyLLMBaseURL  = "llm.base_url"
	KeyLLMModel    = "llm.model"
	KeyLLMAPIKey   = "llm.api_key"

	KeyOCREnabled  = "ocr.enabled"
	KeyOCREngine   = "ocr.engine"
	KeyOCRLanguage = "ocr.language"
	KeyOCRDPI      = "ocr.dpi"
	KeyOCRTimeout  = "ocr.timeout"

	KeyPipelineChunkSize  = "pipeline.chunk_size"
	KeyPipelineOverlap    = "pipeline.overlap"
	KeyPipelineMinChars   = "pipeline.min_chars"
	KeyPipelineMinDensity = "pipeline.min_density"

	KeyQueueWorkers = "queue.workers"
	KeyQueueSize    = "queue.size"

	KeyServerAddr       = "server.addr"
	KeySchedulerEnabled = "scheduler.enabled"
	KeyResumeInterval   = "scheduler.resume_interval"
	KeyRebuildInterval  = "scheduler.rebuild_interval"
	KeyLogLevel         = "log.level"
)

type field struct {
	secret bool
	set    func(c *Config, v any) error
	get    func(c *Config) any
}

var fields = map[string]field{
	KeyStorageBackend: stringField(func(c *Config) *string { return &c.Storage.Backend }),
	KeyStorageDataDir: stringField(func(c *Config) *string { return &c.Storage.DataDir }),
	KeyStorageBlobDir: stringField(func(c *Config) *string { return &c.Storage.BlobDir }),
	KeyPostgresURL:    secretString(func(c *Config) *string { return &c.Storage.Postgres.URL }),
	KeyPostgresName:   stringField(func(c *Config) *string { return &c.Storage.Postgres.Name }),
	KeyPostgresUser:   stringField(func(c *Config) *string { return &c.Storage.Postgres.User }),
	KeyPostgresPassword: secretString(func(c *Config) *string {
		return &c.Storage.Postgres.Password
	}),
	KeyPostgresHost:     stringField(func(c *Config) *string { return &c.Storage.Postgres.Host }),
	KeyPostgresPort:     intField(func(c *Config) *int { return &c.Storage.Postgres.Port }),
	KeyPostgresMaxConns: intField(func(c *Config) *int { return &c.Storage.Postgres.MaxConns }),

	KeyEmbeddingProvider:    providerField(func(c *Config) *domain.AIProvider { return &c.Embedding.Provider }),
	KeyEmbeddingBaseURL:     stringField(func(c *Config) *string { return &c.Embedding.BaseURL }),
	KeyEmbeddingModel:       stringField(func(c *Config) *string { return &c.Embedding.Model }),
	KeyEmbeddingAPIKey:      secretString(func(c *Config) *string { return &c.Embedding.APIKey }),
	KeyEmbeddingBatchSize:   intField(func(c *Config) *int { return &c.Embedding.BatchSize }),
	KeyEmbeddingConcurrency: intField(func(c *Config) *int { return &c.Embedding.Concurrency }),
	KeyEmbeddingMaxRetries:  intField(func(c *Config) *int { return &c.Embedding.MaxRetries }),
	KeyEmbeddingTimeout:     durationField(func(c *Config) *time.Duration { return &c.Embedding.Timeout }),
	KeyEmbeddingRate:        floatField(func(c *Config) *float64 { return &c.Embedding.RequestsPerSecond }),
	KeyEmbeddingBurst:       intField(func(c *Config) *int { return &c.Embedding.Burst }),

	KeyLLMProvider: providerField(func(c *Config) *domain.AIProvider { return &c.LLM.Provider }),
	KeyLLMBaseURL:  stringField(func(c *Config) *string { return &c.LLM.BaseURL }),
	KeyLLMModel:    stringField(func(c *Config) *string { return &c.LLM.Model }),
	KeyLLMAPIKey:   secretString(func(c *Config) *string { return &c.LLM.APIKey }),

	KeyOCREnabled:  boolField(func(c *Config) *bool { return &c.OCR.Enabled }),
	KeyOCREngine:   stringField(func(c *Config) *string { return &c.OCR.Engine }),
	KeyOCRLanguage: stringField(func(c *Config) *string { return &c.OCR.Language }),
	KeyOCRDPI:      intField(func(c *Config) *int { return &c.OCR.DPI }),
	KeyOCRTimeout:  durationField(func(c *Config) *time.Duration { return &c.OCR.Timeout }),

	KeyPipelineChunkSize:  intField(func(c *Config) *int { return &c.Pipeline.ChunkSize }),
	KeyPipelineOverlap:    intField(func(c *Config) *int { return &c.Pipeline.Overlap }),
	KeyPipelineMinChars:   intField(func(c *Config) *int { return &c.Pipeline.MinChars }),
	KeyPipelineMinDensity: floatField(func(c *Config) *float64 { return &c.Pipeline.MinDensity }),

	KeyQueueWorkers: intField(func(c *Config) *int { return &c.Queue.Workers }),
	KeyQueueSize:    intField(func(c *Config) *int { return &c.Queue.Size }),

	KeyServerAddr:       stringField(func(c *Config) *string { return &c.Server.Addr }),
	KeySchedulerEnabled: boolField(func(c *Config) *bool { return &c.Scheduler.Enabled }),
	KeyResumeInterval:   durationField(func(c *Config) *time.Duration { return &c.Scheduler.ResumeInterval }),
	KeyRebuildInterval:  durationField(func(c *Config) *time.Duration { return &c.Scheduler.RebuildInterval }),
	KeyLogLevel:         stringField(func(c *Config) *string { return &c.Log.Level }),
}

// envBindings maps environment variables to keys, applied in order.
var envBindings = []struct {
	env string
	key string
}{
	{"OPPTRACK_STORAGE_BACKEND", KeyStorageBackend},
	{"OPPTRACK_DATA_DIR", KeyStorageDataDir},
	{"OPPTRACK_BLOB_DIR", KeyStorageBlobDir},
	{"DATABASE_URL", KeyPostgresURL},
	{"POSTGRES_DB_NAME", KeyPostgresName},
	{"POSTGRES_DB_USER", KeyPostgresUser},
	{"POSTGRES_DB_PASSWORD", KeyPostgresPassword},
	{"POSTGRES_DB_HOST", KeyPostgresHost},
	{"POSTGRES_DB_PORT", KeyPostgresPort},
	{"EMBEDDING_PROVIDER", KeyEmbeddingProvider},
	{"EMBEDDING_API_BASE_URL", KeyEmbeddingBaseURL},
	{"EMBEDDING_MODEL_NAME", KeyEmbeddingModel},
	{"EMBEDDING_API_KEY", KeyEmbeddingAPIKey},
	{"LLM_PROVIDER", KeyLLMProvider},
	{"LLM_API_BASE_URL", KeyLLMBaseURL},
	{"LLM_MODEL_NAME", KeyLLMModel},
	{"LLM_API_KEY", KeyLLMAPIKey},
	{"OPPTRACK_SERVER_ADDR", KeyServerAddr},
	{"LOG_LEVEL", KeyLogLevel},
}

// Keys returns every recognised config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsKnownKey reports whether key is recognised.
func IsKnownKey(key string) bool {
	_, ok := fields[key]
	return ok
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return fields[key].secret
}

// Value returns the effective value of key, or false if unknown.
func (c *Config) Value(key string) (any, bool) {
	f, ok := fields[key]
	if !ok {
		return nil, false
	}
	return f.get(c), true
}

// ParseValue converts a command-line string to the type key stores, so
// that values written by "config set" round-trip through TOML typed.
func ParseValue(key, raw string) (any, error) {
	f, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	probe := Default()
	if err := f.set(probe, raw); err != nil {
		return nil, err
	}
	switch v := f.get(probe).(type) {
	case time.Duration:
		return v.String(), nil
	case domain.AIProvider:
		return string(v), nil
	default:
		return v, nil
	}
}

func stringField(ptr func(*Config) *string) field {
	return field{
		set: func(c *Config, v any) error {
			s, err := toString(v)
			if err != nil {
				return err
			}
			*ptr(c) = s
			return nil
		},
		get: func(c *Config) any { return *ptr(c) },
	}
}

func secretString(ptr func(*Config) *string) field {
	f := stringField(ptr)
	f.secret = true
	return f
}

func providerField(ptr func(*Config) *domain.AIProvider) field {
	return field{
		set: func(c *Config, v any) error {
			s, err := toString(v)
			if err != nil {
				return err
			}
			p := domain.AIProvider(strings.ToLower(strings.TrimSpace(s)))
			if p != "" && !p.IsValid() {
				return fmt.Errorf("unknown provider %q", s)
			}
			*ptr(c) = p
			return nil
		},
		get: func(c *Config) any { return *ptr(c) },
	}
}

func intField(ptr func(*Config) *int) field {
	return field{
		set: func(c *Config, v any) error {
			switch n := v.(type) {
			case int:
				*ptr(c) = n
			case int64:
				*ptr(c) = int(n)
			case float64:
				*ptr(c) = int(n)
			case string:
				parsed, err := strconv.Atoi(strings.TrimSpace(n))
				if err != nil {
					return fmt.Errorf("%q is not an integer", n)
				}
				*ptr(c) = parsed
			default:
				return fmt.Errorf("%v is not an integer", v)
			}
			return nil
		},
		get: func(c *Config) any { return *ptr(c) },
	}
}

func floatField(ptr func(*Config) *float64) field {
	return field{
		set: func(c *Config, v any) error {
			switch n := v.(type) {
			case float64:
				*ptr(c) = n
			case int64:
				*ptr(c) = float64(n)
			case int:
				*ptr(c) = float64(n)
			case string:
				parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
				if err != nil {
					return fmt.Errorf("%q is not a number", n)
				}
				*ptr(c) = parsed
			default:
				return fmt.Errorf("%v is not a number", v)
			}
			return nil
		},
		get: func(c *Config) any { return *ptr(c) },
	}
}

func boolField(ptr func(*Config) *bool) field {
	return field{
		set: func(c *Config, v any) error {
			switch b := v.(type) {
			case bool:
				*ptr(c) = b
			case string:
				parsed, err := strconv.ParseBool(strings.TrimSpace(b))
				if err != nil {
					return fmt.Errorf("%q is not a boolean", b)
				}
				*ptr(c) = parsed
			default:
				return fmt.Errorf("%v is not a boolean", v)
			}
			return nil
		},
		get: func(c *Config) any { return *ptr(c) },
	}
}

func durationField(ptr func(*Config) *time.Duration) field {
	return field{
		set: func(c *Config, v any) error {
			switch d := v.(type) {
			case string:
				parsed, err := parseDuration(d)
				if err != nil {
					return fmt.Errorf("%q is not a duration", d)
				}
				*ptr(c) = parsed
			case int64:
				*ptr(c) = time.Duration(d) * time.Second
			case int:
				*ptr(c) = time.Duration(d) * time.Second
			default:
				return fmt.Errorf("%v is not a duration", v)
			}
			return nil
		},
		get: func(c *Config) any { return *ptr(c) },
	}
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%v is not a string", v)
	}
	return s, nil
}
