package cli

import (
	"github.com/lherron/usageadm/internal/cli/appctx"
	"github.com/lherron/usageadm/internal/consolidate"
	"github.com/lherron/usageadm/internal/render"
	"github.com/spf13/cobra"
)

// newEngine builds a consolidation engine from the app configuration
func newEngine(app *appctx.App, opts consolidate.Options) *consolidate.Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = app.Config.BatchSize
	}
	opts.CredentialSuffix = app.Config.CredentialSuffix

	opts.Retry = app.RetryConfig()

	return consolidate.NewEngine(app.Conns, opts, app.Logger)
}

// newRenderer reads --json/--yaml and returns a renderer on the command's stdout
func newRenderer(cmd *cobra.Command, asJSON, asYAML bool) (*render.Renderer, error) {
	format, err := render.FormatFromFlags(asJSON, asYAML)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format}), nil
}
