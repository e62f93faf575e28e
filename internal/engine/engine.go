// Package engine is the service facade shared by the HTTP API, the MCP
// server and the CLI. It owns the current snapshot and serializes rebuilds.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aman-CERP/docqa/internal/auth"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/index"
	"github.com/Aman-CERP/docqa/internal/retrieve"
	"github.com/Aman-CERP/docqa/internal/scanner"
	"github.com/Aman-CERP/docqa/internal/tracing"
)

// Rebuilder builds a fresh snapshot of the corpus.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*index.Snapshot, *index.Report, error)
}

// Answerer answers a question against a snapshot.
type Answerer interface {
	Answer(ctx context.Context, snap *index.Snapshot, query string) (*retrieve.Answer, error)
}

// RebuildResult is returned by a successful rebuild.
type RebuildResult struct {
	IndexedFiles []string
	Report       *index.Report
}

// Status describes the current snapshot.
type Status struct {
	Generation string    `json:"generation"`
	Files      int       `json:"files"`
	Chunks     int       `json:"chunks"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
}

// Engine runs Rebuild, Answer and Sources.
type Engine struct {
	holder    *index.Holder
	builder   Rebuilder
	answerer  Answerer
	rebuildMu chan struct{}
	logger    *slog.Logger
	tracer    trace.Tracer

	// onSwap runs after a new snapshot is published.
	onSwap func(prev, next *index.Snapshot)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithSwapHook registers fn to run after every snapshot swap.
func WithSwapHook(fn func(prev, next *index.Snapshot)) Option {
	return func(e *Engine) {
		e.onSwap = fn
	}
}

// New creates an Engine starting from the empty snapshot for indexPath.
func New(builder Rebuilder, answerer Answerer, indexPath string, opts ...Option) *Engine {
	e := &Engine{
		holder:    index.NewHolder(index.EmptySnapshot(indexPath)),
		builder:   builder,
		answerer:  answerer,
		rebuildMu: make(chan struct{}, 1),
		logger:    slog.Default(),
		tracer:    tracing.Tracer(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rebuild rebuilds the index and publishes the new snapshot. Concurrent
// calls wait their turn; a failed rebuild keeps the previous snapshot.
func (e *Engine) Rebuild(ctx context.Context, id auth.Identity) (*RebuildResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Rebuild",
		trace.WithAttributes(attribute.String("docqa.user", id.User)))
	defer span.End()

	select {
	case e.rebuildMu <- struct{}{}:
	case <-ctx.Done():
		return nil, e.fail(span, ctx.Err())
	}
	defer func() { <-e.rebuildMu }()

	start := time.Now()
	snap, report, err := e.builder.Rebuild(ctx)
	if err != nil {
		e.logger.Error("rebuild failed",
			append([]any{slog.String("user", id.User)}, docerrors.FormatForLog(err)...)...)
		return nil, e.fail(span, err)
	}

	prev := e.holder.Swap(snap)
	if e.onSwap != nil {
		e.onSwap(prev, snap)
	}

	span.SetAttributes(
		attribute.String("docqa.generation", snap.Generation),
		attribute.Int("docqa.files", len(snap.Files)),
		attribute.Int("docqa.chunks", len(snap.Chunks)),
		attribute.Int("docqa.skipped", len(report.Errors)),
	)
	e.logger.Info("rebuild",
		slog.String("user", id.User),
		slog.String("generation", snap.Generation),
		slog.Int("files", len(snap.Files)),
		slog.Int("chunks", len(snap.Chunks)),
		slog.Int("skipped", len(report.Errors)),
		slog.Bool("stale_artifact", report.Stale),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &RebuildResult{IndexedFiles: snap.Filenames(), Report: report}, nil
}

// Answer answers query against the current snapshot. The snapshot is read
// once so a concurrent rebuild cannot mix generations.
func (e *Engine) Answer(ctx context.Context, id auth.Identity, query string) (*retrieve.Answer, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Answer",
		trace.WithAttributes(attribute.String("docqa.user", id.User)))
	defer span.End()

	snap := e.holder.Load()
	span.SetAttributes(attribute.String("docqa.generation", snap.Generation))

	start := time.Now()
	ans, err := e.answerer.Answer(ctx, snap, query)
	if err != nil {
		e.logger.Error("answer failed",
			append([]any{slog.String("user", id.User)}, docerrors.FormatForLog(err)...)...)
		return nil, e.fail(span, err)
	}

	span.SetAttributes(attribute.Int("docqa.sources", len(ans.Sources)))
	e.logger.Info("answer",
		slog.String("user", id.User),
		slog.String("generation", snap.Generation),
		slog.Int("query_len", len(query)),
		slog.Int("sources", len(ans.Sources)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return ans, nil
}

// Sources returns the files covered by the current snapshot.
func (e *Engine) Sources(ctx context.Context, id auth.Identity) []scanner.FileRecord {
	_, span := e.tracer.Start(ctx, "engine.Sources",
		trace.WithAttributes(attribute.String("docqa.user", id.User)))
	defer span.End()

	snap := e.holder.Load()
	e.logger.Debug("sources",
		slog.String("user", id.User),
		slog.Int("files", len(snap.Files)))

	files := make([]scanner.FileRecord, len(snap.Files))
	copy(files, snap.Files)
	return files
}

// Snapshot returns the current snapshot.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.holder.Load()
}

// Status summarizes the current snapshot.
func (e *Engine) Status() Status {
	snap := e.holder.Load()
	return Status{
		Generation: snap.Generation,
		Files:      len(snap.Files),
		Chunks:     len(snap.Chunks),
		BuiltAt:    snap.BuiltAt,
	}
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
