package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/portraitforge/portraitforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect effective configuration",
}

var configShowFormat string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate first so invalid settings are reported instead of printed.
		if _, err := loadConfig(cmd.Context()); err != nil {
			return err
		}
		settings := config.RedactSettings(viper.AllSettings())
		return writeSettings(cmd.OutOrStdout(), configShowFormat, settings)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use and the discovery candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		used := viper.ConfigFileUsed()
		if used == "" {
			used = "(none)"
		}
		if _, err := fmt.Fprintf(out, "in use:  %s\ndefault: %s\n", used, config.DefaultConfigPath()); err != nil {
			return err
		}
		for _, candidate := range config.UserConfigPaths() {
			if _, err := fmt.Fprintf(out, "search:  %s\n", candidate); err != nil {
				return err
			}
		}
		return nil
	},
}

func writeSettings(w io.Writer, format string, settings map[string]any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(settings); err != nil {
			return err
		}
		return encoder.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(settings)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(settings)
	default:
		return fmt.Errorf("unsupported format %q (use yaml, toml or json)", format)
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVar(&configShowFormat, "format", "yaml", "Output format: yaml|toml|json")
}
