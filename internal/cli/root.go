package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "usageadm",
	Short: "Administrative CLI for usage account consolidation and purges",
	Long: `usageadm maintains the account data of the usage database. It merges
duplicate accounts that share an email onto their platform identity account
and purges single accounts together with everything they own.

Every command talks to one database over a single connection. Consolidation
merges each duplicate group in its own transaction; a purge deletes events in
bounded batches and can be rerun to finish an interrupted run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command; cancelling ctx stops the running
// command between units of work.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL or SQLite path (overrides USAGEADM_DATABASE_URL)")
	rootCmd.PersistentFlags().String("engine", "", "Database engine: pgsql or sqlite (overrides USAGEADM_ENGINE)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides USAGEADM_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides USAGEADM_LOG_FORMAT)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})
}
