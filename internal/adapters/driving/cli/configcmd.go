package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/ai"
	"github.com/custodia-labs/opptrack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write configuration",
	Long: `Read and write keys in the config file (~/.opptrack/config.toml).

Values from the config file are overridden by the --env-file and then by
the process environment. "config get" and "config list" show the
effective value; secrets are masked.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a key in the config file",
	Long: `Store a key in the config file.

Examples:
  opptrack config set embedding.provider ollama
  opptrack config set embedding.model nomic-embed-text
  opptrack config set storage.backend postgres
  opptrack config set ocr.timeout 90s`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a key from the config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key with its effective value",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which settings are present",
	Long: `Report which storage and provider settings are present without
printing secrets. With --ping, the embedding and LLM providers are
contacted to confirm the settings work.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

func init() {
	configCheckCmd.Flags().Bool("ping", false, "contact the configured providers")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func displayValue(key string, v any) string {
	s := fmt.Sprint(v)
	if config.IsSecret(key) && s != "" {
		return config.Mask(s)
	}
	return s
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	v, ok := appConfig.Value(args[0])
	if !ok {
		return fmt.Errorf("unknown config key %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), displayValue(args[0], v))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, raw := args[0], args[1]
	value, err := config.ParseValue(key, raw)
	if err != nil {
		return err
	}
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	newPrinter(cmd.OutOrStdout()).Success("Set %s = %s", key, displayValue(key, value))
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	if configStore == nil {
		return errors.New("config store not configured")
	}
	if !config.IsKnownKey(args[0]) {
		return fmt.Errorf("unknown config key %q", args[0])
	}
	if err := configStore.Unset(args[0]); err != nil {
		return fmt.Errorf("failed to unset %s: %w", args[0], err)
	}

	newPrinter(cmd.OutOrStdout()).Success("Unset %s", args[0])
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if err := requireConfig(); err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	if configStore != nil && configStore.Path() != "" {
		p.Muted("# %s", configStore.Path())
	}
	for _, key := range config.Keys() {
		v, _ := appConfig.Value(key)
		p.Line("%s = %s", key, displayValue(key, v))
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if err := requireConfig(); err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	if ping, _ := cmd.Flags().GetBool("ping"); !ping {
		return p.JSON(appConfig.Masked())
	}

	probe := providerProbe
	if probe == nil {
		probe = ai.NewProber(0)
	}
	report, probeErr := appConfig.Probe(cmd.Context(), probe)
	if err := p.JSON(report); err != nil {
		return err
	}
	return probeErr
}
