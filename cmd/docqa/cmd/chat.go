package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/ui"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions in an interactive terminal session",
		Long: `Rebuild the index, then open a terminal chat. Each question is answered
from the current index and shown with its sources. Press Esc or Ctrl+C to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, appOptions{progress: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.engine.Rebuild(ctx, auth.Anonymous)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d files, %d chunks indexed", len(res.IndexedFiles), res.Report.Chunks)

			ask := func(ctx context.Context, q string) (ui.ChatAnswer, error) {
				ans, err := a.engine.Answer(ctx, auth.Anonymous, q)
				if err != nil {
					return ui.ChatAnswer{}, err
				}
				return ui.ChatAnswer{Text: ans.Answer, Sources: ans.Sources}, nil
			}

			model := ui.NewChatModel(ctx, ask, summary, a.cfg.Completion.Timeout, !ui.IsTTY(cmd.OutOrStdout()))
			p := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()))
			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return fmt.Errorf("chat session failed: %w", err)
			}
			return nil
		},
	}

	return cmd
}
