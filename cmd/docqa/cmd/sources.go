package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/ui"
)

func newSourcesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the indexed documents",
		Long:  `Rebuild the index and list every document it covers with its modification time.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.engine.Rebuild(ctx, auth.Anonymous); err != nil {
				return err
			}

			r := ui.NewSourcesRenderer(cmd.OutOrStdout(), !ui.IsTTY(cmd.OutOrStdout()))
			records := a.engine.Sources(ctx, auth.Anonymous)
			if jsonOutput {
				return r.RenderJSON(records)
			}
			return r.Render(records)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output records as JSON")

	return cmd
}
