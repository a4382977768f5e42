package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/usageadm/internal/cli/appctx"
	"github.com/lherron/usageadm/internal/consolidate"
	"github.com/lherron/usageadm/internal/render"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge duplicate accounts onto their platform identity account",
	Long: `Scans every account, groups accounts whose emails match ignoring case and
merges each group onto its single platform identity account. The credential
of the most active member moves to the identity account, all events move
over, and the other members are deleted with their dependent records.

Each group is merged in its own transaction. A group that fails is rolled
back and reported; the run continues. Groups without exactly one identity
account are left alone and listed for manual review.`,
	Args:    cobra.NoArgs,
	PreRunE: validateOutputFlags(&consolidateJSON, &consolidateYAML),
	RunE:    appctx.WithApp(appctx.DefaultOptions(), runConsolidate),
}

var (
	consolidateDryRun bool
	consolidateJSON   bool
	consolidateYAML   bool
)

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().BoolVar(&consolidateDryRun, "dry-run", false, "Show what would be merged without writing")
	consolidateCmd.Flags().BoolVar(&consolidateJSON, "json", false, "Output JSON")
	consolidateCmd.Flags().BoolVar(&consolidateYAML, "yaml", false, "Output YAML")
}

func runConsolidate(app *appctx.App, cmd *cobra.Command, args []string) error {
	r, err := newRenderer(cmd, consolidateJSON, consolidateYAML)
	if err != nil {
		return err
	}

	engine := newEngine(app, consolidate.Options{DryRun: consolidateDryRun})
	report, err := engine.Consolidate(cmd.Context())
	if err != nil {
		return commandError(fmt.Errorf("consolidation aborted: %w", err))
	}

	if r.Structured() {
		return r.Render(report)
	}
	return printMergeReport(r, report)
}

func printMergeReport(r *render.Renderer, report *consolidate.MergeReport) error {
	mode := ""
	if report.DryRun {
		mode = " (dry run, nothing written)"
	}
	r.Printf("Run %s%s\n", report.RunID, mode)
	r.Printf("Scanned %s accounts, found %s duplicate %s\n",
		render.Count(int64(report.AccountsScanned)),
		render.Count(int64(report.DuplicateGroups)),
		render.Plural(int64(report.DuplicateGroups), "group", "groups"))

	if report.DryRun {
		r.Printf("Would merge %s, skipped %s\n", render.Count(int64(len(report.Plans))), render.Count(int64(report.Skipped)))
		for _, plan := range report.Plans {
			r.Printf("\n%s -> %s (donor %s, %s %s move, credential rotated: %t)\n",
				plan.Email, plan.IdentityID, plan.DonorID,
				render.Count(plan.EventsReassigned), render.Plural(plan.EventsReassigned, "event", "events"),
				plan.CredentialRotated)
			r.Printf("%s", plan.Diff)
		}
	} else {
		r.Printf("Merged %s, failed %s, skipped %s\n",
			render.Count(int64(report.Merged)),
			render.Count(int64(len(report.Failures))),
			render.Count(int64(report.Skipped)))

		if len(report.Groups) > 0 {
			r.Printf("\n")
			rows := make([][]string, 0, len(report.Groups))
			for _, g := range report.Groups {
				rows = append(rows, []string{
					g.Email,
					g.IdentityID,
					g.DonorID,
					strings.Join(g.MergedIDs, ","),
					render.Count(g.EventsReassigned),
					yesNo(g.CredentialRotated),
				})
			}
			if err := r.RenderTable([]string{"EMAIL", "IDENTITY", "DONOR", "MERGED", "EVENTS MOVED", "ROTATED"}, rows); err != nil {
				return err
			}
		}
	}

	if len(report.Failures) > 0 {
		r.Printf("\nFailed groups (rolled back):\n")
		for _, f := range report.Failures {
			r.Printf("  %s [%s] %s: %s\n", f.Email, strings.Join(f.AccountIDs, ","), f.Class, f.Error)
		}
	}

	if len(report.Problems) > 0 {
		r.Printf("\nNeeds manual review:\n")
		rows := make([][]string, 0, len(report.Problems))
		for _, p := range report.Problems {
			rows = append(rows, []string{p.AccountID, p.Email, string(p.Reason)})
		}
		if err := r.RenderTable([]string{"ACCOUNT", "EMAIL", "REASON"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// validateOutputFlags rejects conflicting output flags before any connection is made
func validateOutputFlags(asJSON, asYAML *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, err := render.FormatFromFlags(*asJSON, *asYAML)
		return withCode(exitUsage, err)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
