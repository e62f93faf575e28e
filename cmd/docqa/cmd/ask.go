package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/ui"
)

// askResult is the JSON shape of POST /ask.
type askResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func newAskCmd() *cobra.Command {
	var (
		indexFirst bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the corpus",
		Long: `Answer a question grounded in the closest indexed chunks.

Chunk metadata lives only in process memory, so by default the index is
rebuilt first. With --index-first=false the answer is always
"No documents indexed yet."`,
		Example: `  docqa ask "How do we fail over the payments database?"
  docqa ask --offline --json "What is the RTO for tier 1?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if indexFirst {
				if _, err := a.engine.Rebuild(ctx, auth.Anonymous); err != nil {
					return err
				}
			}

			ans, err := a.engine.Answer(ctx, auth.Anonymous, strings.Join(args, " "))
			if err != nil {
				return err
			}

			sources := ans.Sources
			if sources == nil {
				sources = []string{}
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(askResult{Answer: ans.Answer, Sources: sources})
			}

			styles := ui.GetStyles(!ui.IsTTY(cmd.OutOrStdout()))
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, styles.Assistant.Render(ans.Answer))
			if len(sources) > 0 {
				_, _ = fmt.Fprintln(w)
				_, _ = fmt.Fprintln(w, styles.Label.Render("Sources:"))
				for _, s := range sources {
					_, _ = fmt.Fprintf(w, "  %s\n", styles.Source.Render(s))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&indexFirst, "index-first", true, "Rebuild the index before answering")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the answer as JSON")

	return cmd
}
