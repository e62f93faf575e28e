package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/output"
	"github.com/Aman-CERP/docqa/internal/ui"
)

// indexResult is the JSON shape of POST /index.
type indexResult struct {
	Status       string   `json:"status"`
	IndexedFiles []string `json:"indexed_files"`
}

func newIndexCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from the corpus folders",
		Long: `Scan the corpus folders, extract and chunk every .docx and .pptx file,
embed the chunks and write the vector index artifact.

Unreadable documents are skipped and reported unless index.fail_fast is set.`,
		Example: `  # Rebuild with the configured providers
  docqa index

  # Rebuild without network access
  docqa index --offline --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts := appOptions{}
			if !jsonOutput {
				opts.progress = cmd.ErrOrStderr()
			}
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.engine.Rebuild(ctx, auth.Anonymous)
			if err != nil {
				return err
			}

			files := res.IndexedFiles
			if files == nil {
				files = []string{}
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(indexResult{Status: "success", IndexedFiles: files})
			}

			out := output.NewWithColor(cmd.OutOrStdout(), ui.IsTTY(cmd.OutOrStdout()))
			if len(files) == 0 {
				out.Warning("No documents found in the corpus folders")
				for _, f := range a.cfg.Corpus.Folders {
					out.Hint(f)
				}
				return nil
			}
			out.Successf("Indexed %d files (%d chunks)", len(files), res.Report.Chunks)
			out.List(files)
			for _, fe := range res.Report.Errors {
				out.Warningf("skipped %s: %v", fe.File, fe.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}
