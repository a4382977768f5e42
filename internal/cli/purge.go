package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/usageadm/internal/cli/appctx"
	"github.com/lherron/usageadm/internal/consolidate"
	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/render"
)

var purgeCmd = &cobra.Command{
	Use:   "purge --user <id>",
	Short: "Delete one account and everything it owns",
	Long: `Deletes the account's dependent records and the account row in one
transaction, then deletes its events in batches of --batch-size rows, each
batch in its own transaction.

If the purge is interrupted while deleting events, run it again with the same
--user: the remaining events are deleted and the run is reported as resumed.`,
	Args:    cobra.NoArgs,
	PreRunE: validatePurgeFlags,
	RunE:    appctx.WithApp(appctx.DefaultOptions(), runPurge),
}

var (
	purgeUser      string
	purgeDryRun    bool
	purgeBatchSize int
	purgeQuiet     bool
	purgeJSON      bool
	purgeYAML      bool
)

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().StringVar(&purgeUser, "user", "", "Account id to purge (required)")
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "Show what would be deleted without writing")
	purgeCmd.Flags().IntVar(&purgeBatchSize, "batch-size", 0, "Events deleted per batch (overrides USAGEADM_BATCH_SIZE)")
	purgeCmd.Flags().BoolVarP(&purgeQuiet, "quiet", "q", false, "Do not print per-batch progress")
	purgeCmd.Flags().BoolVar(&purgeJSON, "json", false, "Output JSON")
	purgeCmd.Flags().BoolVar(&purgeYAML, "yaml", false, "Output YAML")
}

func validatePurgeFlags(cmd *cobra.Command, args []string) error {
	purgeUser = strings.TrimSpace(purgeUser)
	if purgeUser == "" {
		return withCode(exitUsage, fmt.Errorf("--user is required"))
	}
	if purgeBatchSize < 0 {
		return withCode(exitUsage, fmt.Errorf("--batch-size must be positive, got %d", purgeBatchSize))
	}
	return validateOutputFlags(&purgeJSON, &purgeYAML)(cmd, args)
}

func runPurge(app *appctx.App, cmd *cobra.Command, args []string) error {
	r, err := newRenderer(cmd, purgeJSON, purgeYAML)
	if err != nil {
		return err
	}

	opts := consolidate.Options{BatchSize: purgeBatchSize}
	if !purgeQuiet {
		progress := cmd.ErrOrStderr()
		opts.OnBatch = func(accountID string, batch int, deleted, total int64) {
			fmt.Fprintf(progress, "batch %d: deleted %s events of %s (%s so far)\n",
				batch, render.Count(deleted), accountID, render.Count(total))
		}
	}
	engine := newEngine(app, opts)

	if purgeDryRun {
		plan, err := engine.PlanPurge(cmd.Context(), purgeUser)
		if err != nil {
			return commandError(err)
		}
		if r.Structured() {
			return r.Render(plan)
		}
		return printPurgePlan(r, plan)
	}

	report, err := engine.Purge(cmd.Context(), purgeUser)
	if err != nil {
		// A partial report still tells the operator how far the purge got.
		if report != nil && report.State != domain.PurgePending {
			fmt.Fprintf(cmd.ErrOrStderr(), "purge of %s stopped in state %s after %s events; rerun to resume\n",
				purgeUser, report.State, render.Count(report.EventsRemoved()))
		}
		return commandError(err)
	}

	if r.Structured() {
		return r.Render(report)
	}

	resumed := ""
	if report.Resumed {
		resumed = " (resumed)"
	}
	r.Printf("Purged %s%s: %s %s in %d %s\n",
		report.AccountID, resumed,
		render.Count(report.EventsRemoved()), render.Plural(report.EventsRemoved(), "event", "events"),
		len(report.EventBatches), render.Plural(int64(len(report.EventBatches)), "batch", "batches"))
	return r.RenderTable([]string{"TABLE", "ROWS"}, rowCounts(report.Removed))
}

func printPurgePlan(r *render.Renderer, plan *consolidate.PurgePlan) error {
	if plan.Account != nil {
		r.Printf("Would purge %s <%s>, created %s\n", plan.Account.ID, plan.Account.Email, plan.Account.CreatedAt.Format("2006-01-02"))
	} else {
		r.Printf("Would resume purge of %s (account row already deleted)\n", plan.AccountID)
	}
	return r.RenderTable([]string{"TABLE", "ROWS"}, rowCounts(plan.Rows))
}

func rowCounts(counts map[string]int64) [][]string {
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	rows := make([][]string, 0, len(tables))
	for _, table := range tables {
		rows = append(rows, []string{table, render.Count(counts[table])})
	}
	return rows
}
