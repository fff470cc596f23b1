package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/imaging"
	"github.com/portraitforge/portraitforge/internal/observability"
	"github.com/portraitforge/portraitforge/internal/output"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Subject image utilities",
}

var imageInspectCmd = &cobra.Command{
	Use:   "inspect <file> [file...]",
	Short: "Report format, dimensions and upload content type of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxDimension, _ := cmd.Flags().GetInt("max-dimension")
		out := cmd.OutOrStdout()
		var failed int
		for _, path := range args {
			data, err := os.ReadFile(path) // #nosec G304 -- operator-provided path
			if err != nil {
				return err
			}
			info, err := imaging.Inspect(data)
			if err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "%s: %v\n", path, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s: %s %dx%d %s, uploads as %s\n",
				path, info.Format, info.Width, info.Height, output.HumanBytes(int64(len(data))), info.FitMimeType(maxDimension))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images could not be decoded", failed, len(args))
		}
		return nil
	},
}

var imageFitCmd = &cobra.Command{
	Use:   "fit <file>",
	Short: "Downscale an image the way subjects are prepared for upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxDimension, _ := cmd.Flags().GetInt("max-dimension")
		outPath, _ := cmd.Flags().GetString("out")
		if maxDimension < 64 || maxDimension > 4096 {
			return errors.New("--max-dimension must be between 64 and 4096")
		}

		data, err := os.ReadFile(args[0]) // #nosec G304 -- operator-provided path
		if err != nil {
			return err
		}
		fitted, mimeType, err := imaging.Fit(data, maxDimension)
		if err != nil {
			return err
		}

		if strings.TrimSpace(outPath) == "" {
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			outPath = filepath.Join(filepath.Dir(args[0]), fmt.Sprintf("%s.fit%s", base, imaging.ExtensionFor(mimeType)))
		}
		if err := os.WriteFile(outPath, fitted, 0644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}

		observability.CLILogger.Info("Image fitted",
			zap.String("in", args[0]),
			zap.String("out", outPath),
			zap.String("content_type", mimeType),
			zap.Int("bytes", len(fitted)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.AddCommand(imageInspectCmd)
	imageCmd.AddCommand(imageFitCmd)

	imageInspectCmd.Flags().Int("max-dimension", 1024, "Largest side allowed before downscaling")
	imageFitCmd.Flags().Int("max-dimension", 1024, "Largest side of the output image")
	imageFitCmd.Flags().String("out", "", "Output path (default <name>.fit.<ext> next to the input)")
}
