package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/portraitforge/portraitforge/internal/config"
	"github.com/portraitforge/portraitforge/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics:        %s on :%d", cfg.Metrics.Backend, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+viperConfigFileOr(config.DefaultConfigPath()), zap.String("config_file", viperConfigFileOr(config.DefaultConfigPath())))
		observability.CLILogger.Info("")

		// Provider
		apiKey := "(not set)"
		if strings.TrimSpace(cfg.Provider.APIKey) != "" {
			apiKey = "(set)"
		}
		observability.CLILogger.Info("Provider:")
		observability.CLILogger.Info("  Base URL:       " + cfg.Provider.BaseURL)
		observability.CLILogger.Info("  Model:          "+cfg.Provider.Model, zap.String("model", cfg.Provider.Model))
		observability.CLILogger.Info("  Timeout:        " + cfg.Provider.Timeout.String())
		observability.CLILogger.Info("  API Key:        " + apiKey)
		observability.CLILogger.Info("")

		// Generation
		observability.CLILogger.Info("Generation:")
		observability.CLILogger.Info(fmt.Sprintf("  Admission:      %s/min, %s/day", limitLabel(cfg.RateLimit.PerMinute), limitLabel(cfg.RateLimit.PerDay)))
		observability.CLILogger.Info(fmt.Sprintf("  Retry:          %d attempts, %s backoff, %s max delay", cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff, cfg.Retry.MaxDelay))
		observability.CLILogger.Info(fmt.Sprintf("  Workers:        %d", cfg.Generation.Workers), zap.Int("workers", cfg.Generation.Workers))
		observability.CLILogger.Info(fmt.Sprintf("  Strict Quorum:  %t", cfg.Generation.StrictQuorum))
		observability.CLILogger.Info("  Subjects Root:  " + cfg.Subjects.Root)
		if cfg.Artifacts.Sink == "dir" {
			observability.CLILogger.Info("  Artifacts:      dir " + cfg.Artifacts.Dir)
		} else {
			observability.CLILogger.Info("  Artifacts:      database")
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
