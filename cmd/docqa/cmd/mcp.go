package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport  string
		indexFirst bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Run a Model Context Protocol server exposing the tools rebuild_index,
ask and list_sources, plus the docqa://sources and docqa://status resources.

stdout carries JSON-RPC, so logs always go to ~/.docqa/logs/docqa.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, appOptions{stdio: true})
			if err != nil {
				return err
			}
			defer a.close()

			if indexFirst {
				if _, err := a.engine.Rebuild(ctx, auth.Anonymous); err != nil {
					return err
				}
			}

			srv, err := mcp.NewServer(a.engine, a.logger)
			if err != nil {
				return err
			}
			return srv.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")
	cmd.Flags().BoolVar(&indexFirst, "index", false, "Rebuild the index before serving")

	return cmd
}
