package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Aman-CERP/docqa/internal/config"
	"github.com/Aman-CERP/docqa/internal/embed"
	"github.com/Aman-CERP/docqa/internal/engine"
	"github.com/Aman-CERP/docqa/internal/index"
	"github.com/Aman-CERP/docqa/internal/llm"
	"github.com/Aman-CERP/docqa/internal/logging"
	"github.com/Aman-CERP/docqa/internal/retrieve"
	"github.com/Aman-CERP/docqa/internal/tracing"
	"github.com/Aman-CERP/docqa/internal/ui"
	"github.com/Aman-CERP/docqa/pkg/version"
)

// app is the wired service shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	embedder  embed.Embedder
	completer llm.Completer
	builder   *index.Builder
	retriever *retrieve.Retriever
	engine    *engine.Engine

	cleanups []func()
}

// appOptions adjusts wiring per command.
type appOptions struct {
	// progress receives rebuild progress; nil discards it.
	progress io.Writer
	// stdio forces file-only logging because stdout carries a protocol.
	stdio bool
}

// loadConfig resolves configuration from the working directory and flags.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Load(cwd, globals.configFile)
	if err != nil {
		return nil, err
	}
	if globals.offline {
		cfg.ApplyOffline()
	}
	return cfg, nil
}

// newApp loads configuration and wires providers, builder, retriever and
// engine. Callers must call close.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if err := a.setupLogging(opts.stdio); err != nil {
		return nil, err
	}

	shutdown, err := tracing.Setup(ctx, cfg.Tracing, version.Version)
	if err != nil {
		a.close()
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			a.logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	})

	a.embedder, err = embed.NewEmbedder(cfg.Embeddings, cfg.Resilience)
	if err != nil {
		a.close()
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() { _ = a.embedder.Close() })

	a.completer, err = llm.NewCompleter(cfg.Completion, cfg.Resilience)
	if err != nil {
		a.close()
		return nil, err
	}

	var renderer ui.Renderer = ui.NopRenderer{}
	if opts.progress != nil {
		renderer = ui.NewRenderer(ui.NewConfig(opts.progress))
	}

	a.builder = index.NewBuilder(index.OptionsFromConfig(cfg), a.embedder,
		index.WithRenderer(renderer),
		index.WithLogger(a.logger))

	// Only query embeddings are cached; each rebuild embeds fresh text.
	queryEmbedder := embed.NewCachedEmbedder(a.embedder, cfg.Embeddings.CacheSize)
	a.retriever = retrieve.New(queryEmbedder, a.completer, retrieve.Options{
		TopK:        cfg.Retrieval.TopK,
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: cfg.Completion.Temperature,
	}, retrieve.WithLogger(a.logger))

	loader := a.retriever.Loader()
	a.engine = engine.New(a.builder, a.retriever, cfg.Index.Path,
		engine.WithLogger(a.logger),
		engine.WithTracer(tracing.Tracer()),
		engine.WithSwapHook(func(_, next *index.Snapshot) {
			loader.Invalidate(next.IndexPath)
		}))

	a.logger.Debug("docqa wired",
		slog.String("embedder", a.embedder.ModelName()),
		slog.Int("dimensions", a.embedder.Dimensions()),
		slog.String("completer", a.completer.ModelName()),
		slog.String("index_path", cfg.Index.Path),
		slog.Any("folders", cfg.Corpus.Folders))

	return a, nil
}

// setupLogging builds the app logger. --debug already installed a file
// logger as the default; otherwise logging follows cfg.Logging.
func (a *app) setupLogging(stdio bool) error {
	if stdio {
		cleanup, err := logging.SetupStdioMode(levelFor(a.cfg.Logging.Level))
		if err != nil {
			return fmt.Errorf("failed to setup stdio logging: %w", err)
		}
		a.cleanups = append(a.cleanups, cleanup)
		a.logger = slog.Default()
		return nil
	}

	if globals.debug {
		a.logger = slog.Default()
		return nil
	}

	lc := logging.DefaultConfig()
	lc.Level = a.cfg.Logging.Level
	lc.Format = a.cfg.Logging.Format
	lc.FilePath = a.cfg.Logging.File
	logger, cleanup, err := logging.Setup(lc)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.cleanups = append(a.cleanups, cleanup)
	a.logger = logger
	return nil
}

func levelFor(configured string) string {
	if globals.debug {
		return "debug"
	}
	return configured
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
