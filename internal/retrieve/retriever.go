// Package retrieve answers questions from the current index snapshot.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/docqa/internal/embed"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/index"
	"github.com/Aman-CERP/docqa/internal/llm"
	"github.com/Aman-CERP/docqa/internal/store"
)

// Soft-failure answers. They are returned as normal answers with no sources.
const (
	NoDocumentsAnswer = "No documents indexed yet."
	NoIndexAnswer     = "Vector store not found. Please run /index first."
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// ContextSeparator joins retrieved chunk texts in the prompt.
const ContextSeparator = "\n---\n"

const promptTemplate = "Answer the question using only the context below.\nContext:\n%s\n\nQuestion: %s\nAnswer:"

// BuildPrompt renders the grounded prompt for query over the joined context.
func BuildPrompt(contextText, query string) string {
	return fmt.Sprintf(promptTemplate, contextText, query)
}

// Answer is the result of one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`

	// Hits are the chunks the answer was grounded in, nearest first.
	Hits []Hit `json:"-"`
}

// Hit is one retrieved chunk.
type Hit struct {
	Key      uint64
	File     string
	ChunkID  int
	Distance float32
}

// Options configures a Retriever.
type Options struct {
	TopK        int
	MaxTokens   int
	Temperature float32
}

// Retriever embeds a question, searches the snapshot's index and asks the
// completer for a grounded answer.
type Retriever struct {
	embedder  embed.Embedder
	completer llm.Completer
	loader    *Loader
	opts      Options
	logger    *slog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLoader shares an artifact loader.
func WithLoader(l *Loader) RetrieverOption {
	return func(r *Retriever) {
		if l != nil {
			r.loader = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Retriever.
func New(embedder embed.Embedder, completer llm.Completer, opts Options, options ...RetrieverOption) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}

	r := &Retriever{
		embedder:  embedder,
		completer: completer,
		opts:      opts,
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(r)
	}
	if r.loader == nil {
		r.loader = NewLoader(r.logger)
	}
	return r
}

// Loader returns the artifact loader.
func (r *Retriever) Loader() *Loader {
	return r.loader
}

// Answer answers query against snap. Empty snapshots, and snapshots whose
// index cannot be read, yield soft-failure answers; provider failures are
// errors.
func (r *Retriever) Answer(ctx context.Context, snap *index.Snapshot, query string) (*Answer, error) {
	if snap.Empty() {
		return &Answer{Answer: NoDocumentsAnswer, Sources: []string{}}, nil
	}

	idx, err := r.graphFor(snap)
	if err != nil {
		r.logger.Warn("vector index unavailable",
			append([]any{slog.String("path", snap.IndexPath)},
				docerrors.FormatForLog(docerrors.IndexLoadError(snap.IndexPath, err))...)...)
		return &Answer{Answer: NoIndexAnswer, Sources: []string{}}, nil
	}

	start := time.Now()
	vecs, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, providerError(ctx, err, docerrors.ErrCodeEmbeddingFailed, "query embedding failed")
	}
	if len(vecs) != 1 {
		return nil, docerrors.EmbeddingError(fmt.Sprintf("expected 1 query vector, got %d", len(vecs)), nil)
	}
	embedTime := time.Since(start)

	results, err := idx.Search(vecs[0], r.opts.TopK)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeSearchFailed, "vector search failed", err)
	}

	hits := make([]Hit, 0, len(results))
	contexts := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, res := range results {
		if res.Key >= uint64(len(snap.Chunks)) {
			r.logger.Warn("dropping out-of-range index key",
				slog.Uint64("key", res.Key),
				slog.Int("chunks", len(snap.Chunks)))
			continue
		}
		c := snap.Chunks[res.Key]
		hits = append(hits, Hit{Key: c.Key, File: c.File, ChunkID: c.ChunkID, Distance: res.Distance})
		contexts = append(contexts, c.Text)
		if _, ok := seen[c.File]; !ok {
			seen[c.File] = struct{}{}
			sources = append(sources, c.File)
		}
	}

	start = time.Now()
	text, err := r.completer.Complete(ctx, llm.Request{
		Prompt:      BuildPrompt(strings.Join(contexts, ContextSeparator), query),
		Contexts:    contexts,
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
	})
	if err != nil {
		return nil, providerError(ctx, err, docerrors.ErrCodeCompletionFailed, "answer generation failed")
	}

	r.logger.Debug("answer generated",
		slog.Int("hits", len(hits)),
		slog.Int("sources", len(sources)),
		slog.Int64("embed_ms", embedTime.Milliseconds()),
		slog.Int64("complete_ms", time.Since(start).Milliseconds()))

	return &Answer{
		Answer:  strings.TrimSpace(text),
		Sources: sources,
		Hits:    hits,
	}, nil
}

// graphFor returns the graph built with snap. Snapshots without one fall back
// to the artifact at IndexPath, which must carry the snapshot's generation:
// another generation's keys do not line up with snap.Chunks.
func (r *Retriever) graphFor(snap *index.Snapshot) (*store.HNSWIndex, error) {
	if snap.Index != nil {
		return snap.Index, nil
	}
	idx, meta, err := r.loader.Load(snap.IndexPath)
	if err != nil {
		return nil, err
	}
	if meta.Generation != snap.Generation {
		return nil, fmt.Errorf("artifact generation %q does not match snapshot generation %q",
			meta.Generation, snap.Generation)
	}
	return idx, nil
}

// providerError keeps cancellation and already-coded provider errors, and
// wraps anything else under code.
func providerError(ctx context.Context, err error, code, message string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if docerrors.GetCode(err) == code {
		return err
	}
	return docerrors.New(code, message, err)
}
