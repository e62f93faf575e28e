package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docqa/internal/api"
	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		watch      bool
		indexFirst bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API:

  POST /ask       {"query": "..."} -> {"answer": "...", "sources": [...]}
  POST /index     rebuild the index -> {"status": "success", "indexed_files": [...]}
  GET  /sources   indexed file records
  GET  /auth      the caller identity
  GET  /healthz   liveness and current generation

The process starts with an empty index; call POST /index, pass --index,
or use --watch to rebuild whenever a document changes.`,
		Example: `  docqa serve --addr :8000
  docqa serve --index --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			if indexFirst {
				if _, err := a.engine.Rebuild(ctx, auth.Anonymous); err != nil {
					return err
				}
			}

			srv := api.NewServer(a.engine, a.cfg.Server, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})

			if watch {
				w, err := watcher.New(watcher.Options{
					Folders:  a.cfg.Corpus.Folders,
					Debounce: a.cfg.Server.WatchDebounce,
					Logger:   a.logger,
				}, func(ctx context.Context) error {
					_, err := a.engine.Rebuild(ctx, auth.Anonymous)
					return err
				})
				if err != nil {
					stop()
					_ = g.Wait()
					return err
				}
				g.Go(func() error {
					return w.Run(gctx)
				})
			}

			err = g.Wait()
			a.logger.Info("server stopped", slog.Bool("watch", watch))
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr, :8000)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild the index when corpus documents change")
	cmd.Flags().BoolVar(&indexFirst, "index", false, "Rebuild the index before serving")

	return cmd
}
