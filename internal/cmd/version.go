package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/portraitforge/portraitforge/internal/core/engine"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended to include build, library, provider and category details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		name := "portraitforge"
		if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
			name = identity.BinaryName
		}

		fmt.Fprintf(out, "%s %s\n", name, versionInfo.Version)
		if !extended {
			return nil
		}

		fmt.Fprintf(out, "Commit:   %s\n", versionInfo.Commit)
		fmt.Fprintf(out, "Built:    %s\n", versionInfo.BuildDate)
		fmt.Fprintf(out, "Go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

		libs := crucible.GetVersion()
		fmt.Fprintf(out, "Gofulmen: %s\n", libs.Gofulmen)
		fmt.Fprintf(out, "Crucible: %s\n", libs.Crucible)

		fmt.Fprintf(out, "\nModel:    %s\n", viper.GetString("provider.model"))
		for _, strategy := range engine.Strategies() {
			fmt.Fprintf(out, "Category: %-16s %d slots, quorum %d\n", strategy.Category, strategy.Parallelism, strategy.Quorum)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
