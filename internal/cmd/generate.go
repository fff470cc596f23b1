package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/core/store"
	apperrors "github.com/portraitforge/portraitforge/internal/errors"
	"github.com/portraitforge/portraitforge/internal/observability"
	"github.com/portraitforge/portraitforge/internal/output"
)

var generateCmd = &cobra.Command{
	Use:   "generate <subject-ref> [subject-ref...]",
	Short: "Generate image variations for subjects",
	Long: `Generate a category of image variations for one or more subjects.

Subject references are resolved against subjects.root. Each run issues one
provider call per slot, retries transient failures, and substitutes the
placeholder image for slots that still fail when the category tolerates it.

Examples:
  portraitforge generate alice.jpg --category age-progression
  portraitforge generate alice.jpg bob.png --category appearance --output-format json
  portraitforge generate alice.jpg --category all --out-dir ./reports`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("category", "c", string(core.CategoryAgeProgression), "Category: age-progression, appearance or all")
	generateCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	generateCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	generateCmd.Flags().String("out-dir", "", "Write one report per subject into a directory")
	generateCmd.Flags().String("model", "", "Provider model override")
	generateCmd.Flags().Int("workers", 0, "Concurrent provider calls (default from generation.workers)")
	generateCmd.Flags().Bool("strict", false, "Exclude placeholder slots from the quorum count")
	generateCmd.Flags().String("years", "", "Age offset passed to age-progression prompts")
	generateCmd.Flags().String("style", "", "Style hint passed to appearance prompts")
}

func parseCategories(value string) ([]core.Category, error) {
	if strings.EqualFold(strings.TrimSpace(value), "all") {
		return core.Categories(), nil
	}
	category, err := core.ParseCategory(value)
	if err != nil {
		return nil, err
	}
	return []core.Category{category}, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	categoryFlag, _ := cmd.Flags().GetString("category")
	categories, err := parseCategories(categoryFlag)
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if model, _ := cmd.Flags().GetString("model"); strings.TrimSpace(model) != "" {
		cfg.Provider.Model = strings.TrimSpace(model)
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Generation.Workers = workers
	}
	if cmd.Flags().Changed("strict") {
		cfg.Generation.StrictQuorum, _ = cmd.Flags().GetBool("strict")
	}
	if years, _ := cmd.Flags().GetString("years"); years != "" {
		cfg.Generation.Years = years
	}
	if style, _ := cmd.Flags().GetString("style"); style != "" {
		cfg.Generation.Style = style
	}

	rt, err := buildRuntime(ctx, cfg, observability.CLILogger)
	if err != nil {
		return err
	}
	defer rt.Close() // nolint:errcheck // best-effort cleanup

	if outDir != "" {
		if outDir, err = ensureOutDir(outDir); err != nil {
			return err
		}
	}

	var (
		records []*store.GenerationRecord
		failed  int
	)
	for _, subject := range args {
		subject = strings.TrimSpace(subject)
		for _, category := range categories {
			start := time.Now()
			report, runErr := rt.orchestrator.Run(ctx, subject, category)
			record := rt.record(ctx, subject, category, report, runErr)

			if runErr != nil {
				failed++
				envelope := apperrors.FromGenerationError(ctx, runErr)
				observability.CLILogger.Error("Generation failed",
					zap.String("subject", subject),
					zap.String("category", string(category)),
					zap.String("error_code", envelope.Code),
					zap.Error(runErr))
			} else {
				observability.CLILogger.Debug("Generation complete",
					zap.String("subject", subject),
					zap.String("category", string(category)),
					zap.Int("artifacts", record.Succeeded),
					zap.Duration("elapsed", time.Since(start)))
			}

			records = append(records, &record)
			if outDir != "" {
				name := fmt.Sprintf("%s.%s.%s", sanitizeFilename(filepath.Base(subject)), category, outputExtension(format))
				if err := writeGenerations(filepath.Join(outDir, name), format, []*store.GenerationRecord{&record}); err != nil {
					return err
				}
			}
		}
	}

	if outDir == "" {
		if err := writeGenerations(outPath, format, records); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d generation runs failed", failed, len(records))
	}
	return nil
}

func writeGenerations(path string, format output.Format, records []*store.GenerationRecord) error {
	if len(records) == 0 {
		return errors.New("no generation results to write")
	}
	rendered, err := output.FormatGenerations(format, records)
	if err != nil {
		return err
	}

	sink, err := openSink(path)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}
