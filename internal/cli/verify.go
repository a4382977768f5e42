package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lherron/usageadm/internal/cli/appctx"
	"github.com/lherron/usageadm/internal/consolidate"
	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/render"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check account data for integrity problems",
	Long: `Runs read-only checks against the usage database: credentials shared by
more than one account, rows whose owning account no longer exists, and
duplicate groups still waiting to be consolidated. Exits non-zero when a
credential is shared or an orphaned row is found.`,
	Args:    cobra.NoArgs,
	PreRunE: validateOutputFlags(&verifyJSON, &verifyYAML),
	RunE:    appctx.WithApp(appctx.DefaultOptions(), runVerify),
}

var (
	verifyJSON    bool
	verifyYAML    bool
	verifyVerbose bool
)

type checkResult struct {
	Name    string   `json:"name" yaml:"name"`
	Status  string   `json:"status" yaml:"status"` // "ok", "warning", "error"
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

type verifyOutput struct {
	consolidate.VerifyReport `yaml:",inline"`

	Checks        []checkResult `json:"checks" yaml:"checks"`
	Warnings      int           `json:"warnings" yaml:"warnings"`
	Errors        int           `json:"errors" yaml:"errors"`
	OverallStatus string        `json:"overall_status" yaml:"overall_status"`
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output JSON")
	verifyCmd.Flags().BoolVar(&verifyYAML, "yaml", false, "Output YAML")
	verifyCmd.Flags().BoolVar(&verifyVerbose, "verbose", false, "List accounts that need manual review")
}

func runVerify(app *appctx.App, cmd *cobra.Command, args []string) error {
	r, err := newRenderer(cmd, verifyJSON, verifyYAML)
	if err != nil {
		return err
	}

	report, err := newEngine(app, consolidate.Options{}).Verify(cmd.Context())
	if err != nil {
		return commandError(err)
	}

	out := &verifyOutput{VerifyReport: *report, OverallStatus: "ok"}
	out.Checks = verifyChecks(report)
	for _, check := range out.Checks {
		switch check.Status {
		case "warning":
			out.Warnings++
		case "error":
			out.Errors++
			out.OverallStatus = "error"
		}
	}
	if out.Warnings > 0 && out.OverallStatus == "ok" {
		out.OverallStatus = "warning"
	}

	if r.Structured() {
		if err := r.Render(out); err != nil {
			return err
		}
	} else {
		printVerifyReport(r, out)
	}

	if !report.OK() {
		return withCode(exitFailed, fmt.Errorf("verification found %d error(s)", out.Errors))
	}
	return nil
}

func verifyChecks(report *consolidate.VerifyReport) []checkResult {
	var results []checkResult

	if report.DuplicateCredentials > 0 {
		results = append(results, checkResult{
			Name:    "credential_uniqueness",
			Status:  "error",
			Message: fmt.Sprintf("%s credential values are held by more than one account", render.Count(int64(report.DuplicateCredentials))),
		})
	} else {
		results = append(results, checkResult{
			Name:    "credential_uniqueness",
			Status:  "ok",
			Message: "Every credential is held by one account",
		})
	}

	tables := make([]string, 0, len(report.Orphans))
	for table := range report.Orphans {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		n := report.Orphans[table]
		check := checkResult{Name: "orphaned_" + table, Status: "ok", Message: fmt.Sprintf("No orphaned %s rows", table)}
		if n > 0 {
			check.Status = "error"
			check.Message = fmt.Sprintf("%s %s rows belong to no account", render.Count(n), table)
			if table == domain.TableEvents {
				check.Details = []string{"events left by an interrupted purge are removed by rerunning purge --user <id>"}
			}
		}
		results = append(results, check)
	}

	pending := checkResult{Name: "pending_groups", Status: "ok", Message: "No duplicate accounts"}
	if report.PendingGroups > 0 {
		pending.Status = "warning"
		pending.Message = fmt.Sprintf("%s duplicate %s not yet consolidated",
			render.Count(int64(report.PendingGroups)), render.Plural(int64(report.PendingGroups), "group", "groups"))
	}
	results = append(results, pending)

	if len(report.Problems) > 0 {
		review := checkResult{
			Name:    "manual_review",
			Status:  "warning",
			Message: fmt.Sprintf("%s accounts need manual review", render.Count(int64(len(report.Problems)))),
		}
		for _, p := range report.Problems {
			review.Details = append(review.Details, fmt.Sprintf("%s %s (%s)", p.AccountID, p.Email, p.Reason))
		}
		results = append(results, review)
	}

	return results
}

func printVerifyReport(r *render.Renderer, out *verifyOutput) {
	for _, check := range out.Checks {
		icon := "✓"
		if check.Status == "warning" {
			icon = "⚠"
		} else if check.Status == "error" {
			icon = "✗"
		}
		r.Printf("  %s %s\n", icon, check.Message)

		if verifyVerbose {
			for _, detail := range check.Details {
				r.Printf("      %s\n", detail)
			}
		}
	}
	r.Printf("\n")

	if out.Errors > 0 {
		r.Printf("Summary: %d error(s), %d warning(s)\n", out.Errors, out.Warnings)
	} else if out.Warnings > 0 {
		r.Printf("Summary: %d warning(s)\n", out.Warnings)
	} else {
		r.Printf("Summary: All checks passed ✓\n")
	}

	if !verifyVerbose && (out.Warnings > 0 || out.Errors > 0) {
		r.Printf("\nRun with --verbose for detailed information\n")
	}
}
