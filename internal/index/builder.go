package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docqa/internal/chunk"
	"github.com/Aman-CERP/docqa/internal/config"
	"github.com/Aman-CERP/docqa/internal/embed"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/extract"
	"github.com/Aman-CERP/docqa/internal/scanner"
	"github.com/Aman-CERP/docqa/internal/store"
	"github.com/Aman-CERP/docqa/internal/ui"
)

// Options configures a Builder.
type Options struct {
	Folders   []string
	IndexPath string
	ChunkSize int
	Workers   int

	// FailFast aborts on the first unreadable document instead of skipping it.
	FailFast bool

	// RemoveStaleArtifact deletes the previous artifact when a rebuild yields no chunks.
	RemoveStaleArtifact bool

	M        int
	EfSearch int
}

// OptionsFromConfig maps the corpus and index sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Folders:             cfg.Corpus.Folders,
		IndexPath:           cfg.Index.Path,
		ChunkSize:           cfg.Index.ChunkSize,
		Workers:             cfg.Index.Workers,
		FailFast:            cfg.Index.FailFast,
		RemoveStaleArtifact: cfg.Index.RemoveStaleArtifact,
		M:                   cfg.Index.M,
		EfSearch:            cfg.Index.EfSearch,
	}
}

// Scanner lists the corpus documents.
type Scanner interface {
	Scan(ctx context.Context, folders []string) ([]scanner.File, error)
}

// ExtractFunc reads the plain text of one document.
type ExtractFunc func(ctx context.Context, path string) (string, error)

// FileError records a document that was skipped.
type FileError struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

// Error returns the skip reason.
func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// Report summarizes one rebuild.
type Report struct {
	Generation string
	Files      []string
	Chunks     int
	Errors     []FileError

	// Stale is set when no chunks were produced and the previous artifact was kept.
	Stale bool

	Timings  ui.StageTimings
	Duration time.Duration
}

// Builder runs full index rebuilds.
type Builder struct {
	opts     Options
	embedder embed.Embedder
	scanner  Scanner
	extract  ExtractFunc
	renderer ui.Renderer
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRenderer reports progress to r.
func WithRenderer(r ui.Renderer) BuilderOption {
	return func(b *Builder) {
		if r != nil {
			b.renderer = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithScanner replaces the corpus scanner.
func WithScanner(s Scanner) BuilderOption {
	return func(b *Builder) {
		b.scanner = s
	}
}

// WithExtractor replaces the document text extractor.
func WithExtractor(fn ExtractFunc) BuilderOption {
	return func(b *Builder) {
		b.extract = fn
	}
}

// NewBuilder creates a Builder that embeds chunks with embedder.
func NewBuilder(opts Options, embedder embed.Embedder, options ...BuilderOption) *Builder {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	b := &Builder{
		opts:     opts,
		embedder: embedder,
		extract:  extract.Extract,
		renderer: ui.NopRenderer{},
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(b)
	}
	if b.scanner == nil {
		b.scanner = scanner.New(b.logger)
	}
	return b
}

// IndexPath returns the artifact path the builder writes.
func (b *Builder) IndexPath() string {
	return b.opts.IndexPath
}

// Rebuild scans, extracts, chunks, embeds and persists the whole corpus.
// On error the previous artifact is left intact and no snapshot is returned.
func (b *Builder) Rebuild(ctx context.Context) (*Snapshot, *Report, error) {
	start := time.Now()
	report := &Report{Generation: uuid.NewString()}

	lock := NewFileLock(b.opts.IndexPath)
	if err := lock.Lock(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, docerrors.New(docerrors.ErrCodeRebuildInProgress, "cannot lock index artifact", err).
			WithDetail("path", lock.Path())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			b.logger.Warn("failed to release index lock", slog.String("error", err.Error()))
		}
	}()

	// Stage 1: scan
	stageStart := time.Now()
	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Scanning corpus folders..."})
	files, err := b.scanner.Scan(ctx, b.opts.Folders)
	if err != nil {
		return nil, nil, err
	}
	report.Timings.Scan = time.Since(stageStart)
	b.logger.Info("index_scan_complete", slog.Int("files", len(files)))

	// Stage 2: extract
	stageStart = time.Now()
	texts, fileErrs, err := b.extractAll(ctx, files)
	if err != nil {
		return nil, nil, err
	}
	report.Timings.Extract = time.Since(stageStart)

	// Stage 3: chunk, keeping file order then chunk order
	stageStart = time.Now()
	snap := &Snapshot{
		Generation: report.Generation,
		Files:      make([]scanner.FileRecord, 0, len(files)),
		Chunks:     []chunk.Chunk{},
		IndexPath:  b.opts.IndexPath,
	}
	for i, f := range files {
		if fileErrs[i] != nil {
			report.Errors = append(report.Errors, FileError{File: f.Record.Filename, Err: fileErrs[i]})
			b.renderer.AddError(ui.ErrorEvent{File: f.Record.Filename, Err: fileErrs[i], IsWarn: true})
			b.logger.Warn("document skipped",
				append([]any{slog.String("file", f.Record.Filename)}, docerrors.FormatForLog(fileErrs[i])...)...)
			continue
		}
		snap.Files = append(snap.Files, f.Record)
		snap.Chunks = append(snap.Chunks, chunk.Document(f.Record.Filename, texts[i], b.opts.ChunkSize, uint64(len(snap.Chunks)))...)
	}
	report.Files = snap.Filenames()
	report.Chunks = len(snap.Chunks)
	report.Timings.Chunk = time.Since(stageStart)
	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageChunking,
		Current: len(snap.Files),
		Total:   len(files),
		Message: fmt.Sprintf("%d chunks", len(snap.Chunks)),
	})

	if len(snap.Chunks) == 0 {
		if err := b.handleEmpty(report); err != nil {
			return nil, nil, err
		}
	} else {
		dims, err := b.embedAndPersist(ctx, snap, report)
		if err != nil {
			return nil, nil, err
		}
		snap.Dimensions = dims
	}

	snap.BuiltAt = time.Now()
	report.Duration = time.Since(start)

	b.renderer.Complete(ui.CompletionStats{
		Files:    len(snap.Files),
		Chunks:   len(snap.Chunks),
		Duration: report.Duration,
		Errors:   len(report.Errors),
		Stages:   report.Timings,
		Embedder: ui.EmbedderInfo{Model: b.embedder.ModelName(), Dimensions: snap.Dimensions},
	})
	b.logger.Info("index_complete",
		slog.String("generation", snap.Generation),
		slog.Int("files", len(snap.Files)),
		slog.Int("chunks", len(snap.Chunks)),
		slog.Int("skipped", len(report.Errors)),
		slog.Int64("duration_total_ms", report.Duration.Milliseconds()),
		slog.Int64("duration_extract_ms", report.Timings.Extract.Milliseconds()),
		slog.Int64("duration_embed_ms", report.Timings.Embed.Milliseconds()),
		slog.Int64("duration_index_ms", report.Timings.Index.Milliseconds()),
		slog.String("embedder_model", b.embedder.ModelName()))

	return snap, report, nil
}

// extractAll extracts every file with bounded parallelism. texts[i] and
// errs[i] belong to files[i]. A returned error aborts the rebuild.
func (b *Builder) extractAll(ctx context.Context, files []scanner.File) ([]string, []error, error) {
	texts := make([]string, len(files))
	errs := make([]error, len(files))

	// done counts finished extractions; progress is reported under mu so
	// the counter the renderer sees never goes backwards.
	var (
		mu   sync.Mutex
		done int
	)
	finished := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		done++
		b.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageExtracting,
			Current:     done,
			Total:       len(files),
			CurrentFile: name,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := b.extract(gctx, f.Path)
			finished(f.Record.Filename)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if b.opts.FailFast {
					return err
				}
				errs[i] = err
				return nil
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return texts, errs, nil
}

// embedAndPersist embeds every chunk, builds the graph and writes the artifact.
func (b *Builder) embedAndPersist(ctx context.Context, snap *Snapshot, report *Report) (int, error) {
	stageStart := time.Now()
	texts := make([]string, len(snap.Chunks))
	keys := make([]uint64, len(snap.Chunks))
	for i, c := range snap.Chunks {
		texts[i] = c.Text
		keys[i] = c.Key
	}

	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageEmbedding,
		Total:   len(texts),
		Message: fmt.Sprintf("Embedding %d chunks with %s", len(texts), b.embedder.ModelName()),
	})
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if _, ok := docerrors.As(err); !ok {
			err = docerrors.EmbeddingError("embedding chunks failed", err)
		}
		return 0, err
	}
	report.Timings.Embed = time.Since(stageStart)

	dims, err := checkVectors(vectors, len(texts), b.embedder.Dimensions())
	if err != nil {
		return 0, err
	}

	stageStart = time.Now()
	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "Building vector index..."})
	cfg := store.DefaultConfig(dims)
	if b.opts.M > 0 {
		cfg.M = b.opts.M
	}
	if b.opts.EfSearch > 0 {
		cfg.EfSearch = b.opts.EfSearch
	}
	idx, err := store.NewHNSWIndex(cfg)
	if err != nil {
		return 0, docerrors.New(docerrors.ErrCodeIndexFailed, "cannot create vector index", err)
	}
	if err := idx.Add(keys, vectors); err != nil {
		return 0, docerrors.New(docerrors.ErrCodeIndexFailed, "cannot add vectors to index", err)
	}
	if idx.Len() != len(snap.Chunks) {
		return 0, docerrors.New(docerrors.ErrCodeIndexFailed,
			fmt.Sprintf("index has %d rows for %d chunks", idx.Len(), len(snap.Chunks)), nil)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := idx.Save(b.opts.IndexPath, snap.Generation); err != nil {
		return 0, docerrors.New(docerrors.ErrCodeArtifactWrite, "cannot write vector index", err).
			WithDetail("path", b.opts.IndexPath)
	}
	report.Timings.Index = time.Since(stageStart)
	snap.Index = idx
	return dims, nil
}

// checkVectors verifies one vector per chunk, all of the same dimension.
func checkVectors(vectors [][]float32, want, dims int) (int, error) {
	if len(vectors) != want {
		return 0, docerrors.New(docerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), want), nil)
	}
	if dims <= 0 {
		dims = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dims {
			return 0, docerrors.New(docerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(v), dims), nil)
		}
	}
	return dims, nil
}

// handleEmpty keeps or removes the previous artifact when there is nothing to index.
func (b *Builder) handleEmpty(report *Report) error {
	if b.opts.RemoveStaleArtifact {
		if err := store.Remove(b.opts.IndexPath); err != nil {
			return docerrors.New(docerrors.ErrCodeArtifactWrite, "cannot remove stale vector index", err).
				WithDetail("path", b.opts.IndexPath)
		}
		b.logger.Info("no chunks indexed, removed previous artifact", slog.String("path", b.opts.IndexPath))
		return nil
	}

	report.Stale = true
	b.logger.Warn("no chunks indexed, previous artifact left in place",
		slog.String("path", b.opts.IndexPath),
		slog.Int("files", len(report.Files)))
	return nil
}
