package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/appid"
	"github.com/portraitforge/portraitforge/internal/config"
	"github.com/portraitforge/portraitforge/internal/core/engine"
	errwrap "github.com/portraitforge/portraitforge/internal/errors"
	"github.com/portraitforge/portraitforge/internal/observability"
	"github.com/portraitforge/portraitforge/internal/output"
	"github.com/portraitforge/portraitforge/internal/prompt"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the installation and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		bannerName := "doctor"
		if identity != nil && identity.BinaryName != "" {
			bannerName = identity.BinaryName + " doctor"
		}
		log := observability.CLILogger
		log.Info("=== " + bannerName + " ===")
		log.Info("")
		log.Info("Running diagnostic checks...")
		log.Info("")

		allChecks := true
		totalChecks := 8
		step := func(n int, name string) string { return fmt.Sprintf("[%d/%d] Checking %s...", n, totalChecks, name) }

		goVersion := runtime.Version()
		log.Info(step(1, "Go runtime")+" ✅ "+goVersion+" "+runtime.GOOS+"/"+runtime.GOARCH,
			zap.String("go_version", goVersion))

		version := crucible.GetVersion()
		if version.Crucible != "" && version.Gofulmen != "" {
			log.Info(fmt.Sprintf("%s ✅ gofulmen v%s, crucible v%s", step(2, "Fulmen libraries"), version.Gofulmen, version.Crucible))
		} else {
			log.Error(step(2, "Fulmen libraries") + " ❌ Cannot access Crucible")
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible", errwrap.NewExternalServiceError("Crucible service unavailable"))
		}

		cfg, cfgErr := loadConfig(ctx)
		if cfgErr != nil {
			log.Error(step(3, "configuration")+" ❌ invalid", zap.Error(cfgErr))
			log.Info("")
			log.Warn("⚠️  Remaining checks need a valid configuration. Run 'config show' after fixing it.")
			return
		}
		configFile := viperConfigFileOr("(defaults and environment)")
		log.Info(step(3, "configuration")+" ✅ "+configFile, zap.String("config_file", configFile))

		if cfg.Store.URL != "" {
			log.Info(step(4, "database")+" ✅ "+cfg.Store.URL+" (remote)", zap.String("db_url", cfg.Store.URL))
		} else {
			absPath, _ := filepath.Abs(cfg.Store.Path)
			db, err := openStoreWithConfig(ctx, cfg)
			if err != nil {
				log.Error(step(4, "database")+" ❌ "+absPath, zap.Error(err))
				allChecks = false
			} else {
				count, countErr := db.CountArtifacts(ctx)
				_ = db.Close()
				size := "new"
				if info, statErr := os.Stat(absPath); statErr == nil {
					size = output.HumanBytes(info.Size())
				}
				if countErr != nil {
					log.Warn(step(4, "database")+" ⚠️  "+absPath, zap.Error(countErr))
					allChecks = false
				} else {
					log.Info(fmt.Sprintf("%s ✅ %s (%s, %d artifacts)", step(4, "database"), absPath, size, count),
						zap.String("db_path", absPath))
				}
			}
		}

		registry, err := prompt.NewRegistryWithOverrides(cfg.Generation.PromptsDir)
		if err != nil {
			log.Error(step(5, "prompts")+" ❌ cannot load", zap.Error(err))
			allChecks = false
		} else {
			slugs := make([]string, 0, len(engine.Strategies()))
			for _, strategy := range engine.Strategies() {
				slugs = append(slugs, strategy.PromptSlug)
			}
			var unrenderable []string
			for _, slug := range slugs {
				if _, err := registry.Render(slug, cfg.Generation.PromptVars()); err != nil && !errors.Is(err, prompt.ErrPromptNotFound) {
					unrenderable = append(unrenderable, slug)
				}
			}
			if missing := registry.Missing(slugs...); len(missing) > 0 {
				log.Error(step(5, "prompts") + " ❌ missing " + strings.Join(missing, ", "))
				allChecks = false
			} else if len(unrenderable) > 0 {
				log.Error(step(5, "prompts") + " ❌ cannot render " + strings.Join(unrenderable, ", "))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("%s ✅ %d prompts", step(5, "prompts"), len(registry.List())))
			}
		}

		if info, err := os.Stat(cfg.Subjects.Root); err != nil || !info.IsDir() {
			log.Error(step(6, "subjects root")+" ❌ "+cfg.Subjects.Root+" is not a directory", zap.Error(err))
			allChecks = false
		} else {
			log.Info(step(6, "subjects root") + " ✅ " + cfg.Subjects.Root)
		}

		if strings.TrimSpace(cfg.Provider.APIKey) != "" {
			log.Info(step(7, "provider") + " ✅ " + cfg.Provider.Model + " (api key set)")
		} else {
			log.Warn(step(7, "provider") + " ⚠️  no api key; generation returns placeholder images")
			log.Info("       Set " + appid.EnvVar(cmd.Context(), "API_KEY") + " or GEMINI_API_KEY.")
		}

		if cfg.Artifacts.Sink == "dir" {
			if err := verifyDirWritable(cfg.Artifacts.Dir); err != nil {
				log.Error(step(8, "artifact directory")+" ❌ "+cfg.Artifacts.Dir, zap.Error(err))
				allChecks = false
			} else {
				log.Info(step(8, "artifact directory") + " ✅ " + cfg.Artifacts.Dir)
			}
		} else {
			log.Info(step(8, "artifact sink") + " ✅ database")
		}

		log.Info("")
		if allChecks {
			appName := "portraitforge"
			if identity != nil && identity.BinaryName != "" {
				appName = identity.BinaryName
			}
			log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appName))
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("")
		log.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce     bool
	doctorInitAPIKey    string
	doctorResetConfig   bool
	doctorResetData     bool
	doctorResetAll      bool
	doctorInitSubjects  string
	doctorInitArtifacts string
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue(os.Stdin, cmd.OutOrStdout(), "Enter provider API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if apiKey != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(apiKey, doctorInitSubjects, doctorInitArtifacts)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath, _ := filepath.Abs(cfg.Store.Path)
			for _, path := range []string{absPath, absPath + "-wal", absPath + "-shm"} {
				if err := os.Remove(path); err == nil {
					observability.CLILogger.Info("Removed", zap.String("path", path))
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("remove database: %w", err)
				}
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viperConfigFileOr(config.DefaultConfigPath())
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		if _, err := loadConfig(cmd.Context()); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set provider api key or use 'prompt' to enter")
	doctorInitCmd.Flags().StringVar(&doctorInitSubjects, "subjects-root", ".", "directory holding subject images")
	doctorInitCmd.Flags().StringVar(&doctorInitArtifacts, "artifacts-dir", "", "write artifacts to this directory instead of the database")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

func buildInitConfig(apiKey, subjectsRoot, artifactsDir string) string {
	if strings.TrimSpace(subjectsRoot) == "" {
		subjectsRoot = "."
	}
	lines := []string{
		"# portraitforge config - created by 'portraitforge doctor init'",
		"provider:",
		"  model: gemini-2.5-flash-image",
	}
	if strings.TrimSpace(apiKey) != "" {
		lines = append(lines, fmt.Sprintf("  api_key: %q", apiKey))
	} else {
		lines = append(lines, "  # api_key: \"\"  # Set via "+appid.EnvVar(context.Background(), "API_KEY")+" or GEMINI_API_KEY, or uncomment")
	}

	lines = append(lines,
		"rate_limit:",
		"  per_minute: 10",
		"  per_day: 500",
		"subjects:",
		fmt.Sprintf("  root: %q", subjectsRoot),
	)

	if strings.TrimSpace(artifactsDir) != "" {
		lines = append(lines,
			"artifacts:",
			"  sink: dir",
			fmt.Sprintf("  dir: %q", artifactsDir),
		)
	}

	return strings.Join(lines, "\n") + "\n"
}

// promptForValue writes prompt to out and reads one trimmed line from in.
func promptForValue(in io.Reader, out io.Writer, prompt string) (string, error) {
	if _, err := io.WriteString(out, prompt); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// verifyDirWritable creates dir if needed and proves a file can be created in it.
func verifyDirWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
