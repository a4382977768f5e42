package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/usageadm/internal/render"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information for usageadm.`,
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionJSON {
		output := map[string]interface{}{
			"binary":     "usageadm",
			"version":    Version,
			"commit":     GitCommit,
			"build_date": BuildDate,
			"supported_commands": []string{
				"consolidate", "purge", "verify", "version", "completion",
			},
			"supported_formats": []string{
				string(render.FormatTable), string(render.FormatJSON), string(render.FormatYAML),
			},
		}
		return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON}).RenderJSON(output)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "usageadm version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)

	return nil
}
