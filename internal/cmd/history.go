package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portraitforge/portraitforge/internal/core/store"
	"github.com/portraitforge/portraitforge/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded generation runs",
}

var historyListLimit int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent generation runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		records, err := db.ListGenerations(cmd.Context(), historyListLimit)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatHistory(records)
		if err != nil {
			return err
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <generation-id>",
	Short: "Show the slots of one generation run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		record, err := db.GetGeneration(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("generation %s not found", args[0])
		}
		if err != nil {
			return err
		}
		return writeGenerations(outPath, format, []*store.GenerationRecord{record})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)

	for _, c := range []*cobra.Command{historyListCmd, historyShowCmd} {
		c.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
		c.Flags().String("out", "", "Write output to a file (default stdout)")
	}
	historyListCmd.Flags().IntVarP(&historyListLimit, "limit", "n", 20, "Maximum number of runs to list")
}
