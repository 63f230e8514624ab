// Package cli implements the opptrack command line.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/config"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Options are the global flags that shape how services are built.
type Options struct {
	// ConfigPath overrides ~/.opptrack/config.toml.
	ConfigPath string

	// EnvFile is the dotenv file layered over the config file.
	EnvFile string

	// Ephemeral keeps all state in memory for the life of the process.
	Ephemeral bool

	// Verbose enables debug logging.
	Verbose bool
}

// Services are the application services commands call.
type Services struct {
	Ingest    driving.IngestService
	Insights  driving.InsightService
	Queue     driving.IngestQueue
	Scheduler driving.Scheduler
	Probe     driven.ProviderProbe

	// Warnings are shown once before the command runs.
	Warnings []string

	// Close releases storage and provider resources.
	Close func() error
}

// Loader builds configuration and services on demand, so commands that
// only touch the config file never open storage.
type Loader interface {
	LoadConfig(opts Options) (driven.ConfigStore, *config.Config, error)
	Build(ctx context.Context, cfg *config.Config, opts Options) (*Services, error)
}

var (
	loader  Loader
	options Options

	configStore driven.ConfigStore
	appConfig   *config.Config

	ingestService  driving.IngestService
	insightService driving.InsightService
	ingestQueue    driving.IngestQueue
	scheduler      driving.Scheduler
	providerProbe  driven.ProviderProbe
	closeServices  func() error
)

var rootCmd = &cobra.Command{
	Use:   "opptrack",
	Short: "Turn opportunity PDFs into industry insights",
	Long: `opptrack ingests sales opportunity documents (PDF), extracts their text
with OCR fallback for scanned pages, embeds the content and folds it into
per-industry insights you can list, cluster and summarise.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if options.Verbose {
			logger.SetVerbose(true)
		}
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeAll()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&options.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&options.ConfigPath, "config", "", "config file (default ~/.opptrack/config.toml)")
	flags.StringVar(&options.EnvFile, "env-file", ".env", "dotenv file layered over the config file")
	flags.BoolVar(&options.Ephemeral, "ephemeral", false, "keep all state in memory")
}

// SetLoader injects the builder used to lazily create configuration and
// services.
func SetLoader(l Loader) {
	loader = l
}

// SetConfig injects a loaded configuration and its store.
func SetConfig(store driven.ConfigStore, cfg *config.Config) {
	configStore = store
	appConfig = cfg
}

// SetServices injects application services.
func SetServices(s *Services) {
	if s == nil {
		ingestService, insightService, ingestQueue, scheduler, providerProbe, closeServices = nil, nil, nil, nil, nil, nil
		return
	}
	ingestService = s.Ingest
	insightService = s.Insights
	ingestQueue = s.Queue
	scheduler = s.Scheduler
	providerProbe = s.Probe
	closeServices = s.Close
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// requireConfig loads configuration if it has not been injected.
func requireConfig() error {
	if appConfig != nil {
		return nil
	}
	if loader == nil {
		return errors.New("configuration not loaded")
	}
	store, cfg, err := loader.LoadConfig(options)
	if err != nil {
		return err
	}
	SetConfig(store, cfg)
	if !options.Verbose {
		logger.SetLevel(cfg.Log.Level)
	}
	return nil
}

// requireServices builds services if they have not been injected.
func requireServices(cmd *cobra.Command) error {
	if ingestService != nil || insightService != nil {
		return nil
	}
	if err := requireConfig(); err != nil {
		return err
	}
	if loader == nil {
		return errors.New("services not configured")
	}
	s, err := loader.Build(cmd.Context(), appConfig, options)
	if err != nil {
		return err
	}
	SetServices(s)
	for _, w := range s.Warnings {
		logger.Warn("%s", w)
	}
	return nil
}

func closeAll() error {
	if closeServices == nil || loader == nil {
		return nil
	}
	closeFn := closeServices
	SetServices(nil)
	return closeFn()
}
