package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/config"
	"github.com/portraitforge/portraitforge/internal/core/store"
	"github.com/portraitforge/portraitforge/internal/observability"
	"github.com/portraitforge/portraitforge/internal/output"
)

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return openStoreWithConfig(ctx, cfg)
}

func openStoreWithConfig(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the artifact store",
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored artifact and generation counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		artifacts, err := db.CountArtifacts(cmd.Context())
		if err != nil {
			return err
		}
		recent, err := db.ListGenerations(cmd.Context(), 1)
		if err != nil {
			return err
		}

		last := "-"
		if len(recent) > 0 {
			last = fmt.Sprintf("%s (%s)", recent[0].RequestedAt.UTC().Format(time.RFC3339), output.TimeAgo(recent[0].RequestedAt, time.Now()))
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "driver:          %s\nlocation:        %s\nartifacts:       %d\nlast generation: %s\n",
			db.Driver(), db.Location(), artifacts, last)
		return err
	},
}

var storePruneOlderThan time.Duration

var storePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored artifacts older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		if storePruneOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cutoff := time.Now().UTC().Add(-storePruneOlderThan)
		removed, err := db.PruneArtifacts(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		observability.CLILogger.Info("Pruned artifacts",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d artifacts older than %s\n", removed, cutoff.Format(time.RFC3339))
		return err
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storePruneCmd)

	storePruneCmd.Flags().DurationVar(&storePruneOlderThan, "older-than", 30*24*time.Hour, "Remove artifacts created before now minus this duration")
}
