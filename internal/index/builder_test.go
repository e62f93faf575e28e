package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docqa/internal/config"
	"github.com/Aman-CERP/docqa/internal/embed"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
	"github.com/Aman-CERP/docqa/internal/extract/extracttest"
	"github.com/Aman-CERP/docqa/internal/store"
	"github.com/Aman-CERP/docqa/internal/ui"
)

// failingEmbedder fails every batch.
type failingEmbedder struct {
	embed.Embedder
	err error
}

func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

// shortEmbedder returns one vector fewer than requested.
type shortEmbedder struct {
	embed.Embedder
}

func (s *shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return vecs[:len(vecs)-1], nil
}

// corpus lays out a two-folder corpus under a temp dir and returns the builder options.
func corpus(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	qdd := filepath.Join(root, "qdd")
	plr := filepath.Join(root, "plr")

	extracttest.WriteDocx(t, filepath.Join(qdd, "b.docx"), strings.Repeat("b", 700))
	extracttest.WriteDocx(t, filepath.Join(qdd, "a.docx"), "alpha failover runbook")
	extracttest.WritePptx(t, filepath.Join(plr, "deck.pptx"), []string{"Latency", "regional outage"})
	require.NoError(t, os.WriteFile(filepath.Join(qdd, "notes.txt"), []byte("ignored"), 0o644))

	return Options{
		Folders:   []string{qdd, plr, filepath.Join(root, "missing")},
		IndexPath: filepath.Join(root, "out", "vector.index"),
		ChunkSize: 500,
		Workers:   2,
	}
}

func TestBuilder_Rebuild_OrdersChunksByFileThenPosition(t *testing.T) {
	// Given: a corpus of three documents
	opts := corpus(t)
	b := NewBuilder(opts, embed.NewStaticEmbedder(64))

	// When: rebuilding
	snap, report, err := b.Rebuild(context.Background())

	// Then: chunks follow scan order and keys match positions
	require.NoError(t, err)
	require.Len(t, snap.Chunks, 4)
	for i, c := range snap.Chunks {
		assert.Equal(t, uint64(i), c.Key)
	}
	assert.Equal(t, filepath.Join(opts.Folders[0], "a.docx"), snap.Chunks[0].File)
	assert.Equal(t, filepath.Join(opts.Folders[0], "b.docx"), snap.Chunks[1].File)
	assert.Equal(t, 0, snap.Chunks[1].ChunkID)
	assert.Equal(t, 1, snap.Chunks[2].ChunkID)
	assert.Len(t, snap.Chunks[2].Text, 200)
	assert.Equal(t, filepath.Join(opts.Folders[1], "deck.pptx"), snap.Chunks[3].File)

	assert.Equal(t, snap.Filenames(), report.Files)
	assert.Equal(t, 4, report.Chunks)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Stale)
	assert.Equal(t, 64, snap.Dimensions)
	assert.NotEmpty(t, snap.Generation)
}

func TestBuilder_Rebuild_PersistsArtifact(t *testing.T) {
	// Given: a rebuilt corpus
	opts := corpus(t)
	b := NewBuilder(opts, embed.NewStaticEmbedder(64))
	snap, _, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	// When: loading the artifact back
	idx, meta, err := store.Load(opts.IndexPath)

	// Then: rows, generation and nearest neighbour line up with the snapshot
	require.NoError(t, err)
	assert.Equal(t, len(snap.Chunks), idx.Len())
	assert.Equal(t, snap.Generation, meta.Generation)

	query, err := embed.NewStaticEmbedder(64).Embed(context.Background(), snap.Chunks[3].Text)
	require.NoError(t, err)
	results, err := idx.Search(query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(3), results[0].Key)
}

func TestBuilder_Rebuild_EmptyCorpusKeepsStaleArtifact(t *testing.T) {
	// Given: an artifact from an earlier rebuild and a corpus that is now empty
	opts := corpus(t)
	_, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(context.Background())
	require.NoError(t, err)

	empty := opts
	empty.Folders = []string{t.TempDir()}

	// When: rebuilding the empty corpus
	snap, report, err := NewBuilder(empty, embed.NewStaticEmbedder(32)).Rebuild(context.Background())

	// Then: the snapshot is empty and the old artifact stays on disk
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.NotNil(t, snap.Files)
	assert.True(t, report.Stale)
	assert.FileExists(t, opts.IndexPath)
}

func TestBuilder_Rebuild_EmptyCorpusRemovesStaleArtifact(t *testing.T) {
	// Given: an existing artifact and the remove option
	opts := corpus(t)
	_, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(context.Background())
	require.NoError(t, err)

	empty := opts
	empty.Folders = []string{t.TempDir()}
	empty.RemoveStaleArtifact = true

	// When: rebuilding
	_, report, err := NewBuilder(empty, embed.NewStaticEmbedder(32)).Rebuild(context.Background())

	// Then: the artifact and its sidecar are gone
	require.NoError(t, err)
	assert.False(t, report.Stale)
	assert.NoFileExists(t, opts.IndexPath)
	assert.NoFileExists(t, opts.IndexPath+store.MetaSuffix)
}

func TestBuilder_Rebuild_EmptyTextFilesAreListed(t *testing.T) {
	// Given: a document with no text
	dir := t.TempDir()
	extracttest.WriteDocx(t, filepath.Join(dir, "blank.docx"))
	opts := Options{Folders: []string{dir}, IndexPath: filepath.Join(dir, "vector.index")}

	// When: rebuilding
	snap, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(context.Background())

	// Then: it is a source without chunks
	require.NoError(t, err)
	assert.Len(t, snap.Files, 1)
	assert.Empty(t, snap.Chunks)
}

func TestBuilder_Rebuild_SkipsCorruptDocument(t *testing.T) {
	// Given: a corpus with one unreadable document
	opts := corpus(t)
	bad := filepath.Join(opts.Folders[0], "broken.docx")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))

	// When: rebuilding with per-file isolation
	snap, report, err := NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(context.Background())

	// Then: the bad file is reported and excluded, the rest is indexed
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad, report.Errors[0].File)
	assert.NotContains(t, report.Files, bad)
	assert.Len(t, snap.Files, 3)
	assert.Len(t, snap.Chunks, 4)
}

func TestBuilder_Rebuild_FailFastAborts(t *testing.T) {
	// Given: fail-fast and an extractor that fails on one file
	opts := corpus(t)
	opts.FailFast = true
	boom := docerrors.New(docerrors.ErrCodeDocumentCorrupt, "bad document", nil)
	extractor := func(ctx context.Context, path string) (string, error) {
		if strings.HasSuffix(path, "deck.pptx") {
			return "", boom
		}
		return "text", nil
	}

	// When: rebuilding
	snap, report, err := NewBuilder(opts, embed.NewStaticEmbedder(32), WithExtractor(extractor)).
		Rebuild(context.Background())

	// Then: the rebuild fails and nothing is written
	require.Error(t, err)
	assert.True(t, docerrors.HasCode(err, docerrors.ErrCodeDocumentCorrupt))
	assert.Nil(t, snap)
	assert.Nil(t, report)
	assert.NoFileExists(t, opts.IndexPath)
}

func TestBuilder_Rebuild_EmbedFailureKeepsPreviousArtifact(t *testing.T) {
	// Given: an existing artifact
	opts := corpus(t)
	_, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(context.Background())
	require.NoError(t, err)
	before, err := store.ReadMeta(opts.IndexPath)
	require.NoError(t, err)

	// When: the next rebuild cannot embed
	failing := &failingEmbedder{
		Embedder: embed.NewStaticEmbedder(32),
		err:      docerrors.New(docerrors.ErrCodeProviderUnavailable, "provider down", nil),
	}
	snap, _, err := NewBuilder(opts, failing).Rebuild(context.Background())

	// Then: the error surfaces and the old artifact is untouched
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, docerrors.HasCode(err, docerrors.ErrCodeProviderUnavailable))
	after, err := store.ReadMeta(opts.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, before.Generation, after.Generation)
}

func TestBuilder_Rebuild_UnclassifiedEmbedErrorIsWrapped(t *testing.T) {
	opts := corpus(t)
	failing := &failingEmbedder{Embedder: embed.NewStaticEmbedder(32), err: errors.New("boom")}

	_, _, err := NewBuilder(opts, failing).Rebuild(context.Background())

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeEmbeddingFailed, docerrors.GetCode(err))
}

func TestBuilder_Rebuild_VectorCountMismatch(t *testing.T) {
	opts := corpus(t)

	_, _, err := NewBuilder(opts, &shortEmbedder{Embedder: embed.NewStaticEmbedder(32)}).
		Rebuild(context.Background())

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeDimensionMismatch, docerrors.GetCode(err))
	assert.NoFileExists(t, opts.IndexPath)
}

func TestBuilder_Rebuild_Cancelled(t *testing.T) {
	// Given: a context cancelled during extraction
	opts := corpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	extractor := func(ctx context.Context, path string) (string, error) {
		calls.Add(1)
		cancel()
		return "", ctx.Err()
	}

	// When: rebuilding
	snap, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32), WithExtractor(extractor)).Rebuild(ctx)

	// Then: cancellation wins over per-file isolation
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snap)
	assert.NoFileExists(t, opts.IndexPath)
}

// progressRecorder keeps every extraction progress event.
type progressRecorder struct {
	ui.NopRenderer
	mu     sync.Mutex
	events []ui.ProgressEvent
}

func (p *progressRecorder) UpdateProgress(e ui.ProgressEvent) {
	if e.Stage != ui.StageExtracting {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestBuilder_Rebuild_ExtractionProgressIsMonotonic(t *testing.T) {
	// Given: six documents where later files finish extracting first
	dir := t.TempDir()
	names := []string{"a.docx", "b.docx", "c.docx", "d.docx", "e.docx", "f.docx"}
	delays := make(map[string]time.Duration, len(names))
	for i, name := range names {
		extracttest.WriteDocx(t, filepath.Join(dir, name), name)
		delays[filepath.Join(dir, name)] = time.Duration(len(names)-i) * 5 * time.Millisecond
	}
	extractor := func(ctx context.Context, path string) (string, error) {
		time.Sleep(delays[path])
		return filepath.Base(path), nil
	}
	rec := &progressRecorder{}
	opts := Options{Folders: []string{dir}, IndexPath: filepath.Join(dir, "vector.index"), Workers: 4}

	// When: rebuilding with parallel workers
	_, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32), WithExtractor(extractor), WithRenderer(rec)).
		Rebuild(context.Background())

	// Then: the counter climbs one finished file at a time
	require.NoError(t, err)
	require.Len(t, rec.events, len(names))
	for i, e := range rec.events {
		assert.Equal(t, i+1, e.Current)
		assert.Equal(t, len(names), e.Total)
	}
}

func TestBuilder_Rebuild_SnapshotCarriesIndex(t *testing.T) {
	opts := corpus(t)

	snap, _, err := NewBuilder(opts, embed.NewStaticEmbedder(64)).Rebuild(context.Background())

	require.NoError(t, err)
	require.NotNil(t, snap.Index)
	assert.Equal(t, len(snap.Chunks), snap.Index.Len())
	query, err := embed.NewStaticEmbedder(64).Embed(context.Background(), snap.Chunks[0].Text)
	require.NoError(t, err)
	results, err := snap.Index.Search(query, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), results[0].Key)
}

func TestBuilder_Rebuild_EmptyCorpusHasNoIndex(t *testing.T) {
	dir := t.TempDir()

	snap, _, err := NewBuilder(Options{Folders: []string{dir}, IndexPath: filepath.Join(dir, "vector.index")},
		embed.NewStaticEmbedder(32)).Rebuild(context.Background())

	require.NoError(t, err)
	assert.Nil(t, snap.Index)
	assert.True(t, snap.Empty())
}

func TestBuilder_Rebuild_WaitsForLock(t *testing.T) {
	// Given: another holder of the artifact lock
	opts := corpus(t)
	other := NewFileLock(opts.IndexPath)
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = other.Unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When: rebuilding with a context that is already done
	_, _, err = NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(ctx)

	// Then: the rebuild gives up without touching the artifact
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, opts.IndexPath)
}

func TestBuilder_Rebuild_ReleasesLock(t *testing.T) {
	opts := corpus(t)
	_, _, err := NewBuilder(opts, embed.NewStaticEmbedder(32)).Rebuild(context.Background())
	require.NoError(t, err)

	lock := NewFileLock(opts.IndexPath)
	ok, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Unlock())
}

func TestHolder_SwapPublishesSnapshot(t *testing.T) {
	// Given: a holder with the empty snapshot
	h := NewHolder(EmptySnapshot("vector.index"))
	require.True(t, h.Load().Empty())

	// When: swapping in a rebuilt snapshot
	next := &Snapshot{Generation: "g2"}
	prev := h.Swap(next)

	// Then: readers see the new one and the old one is unchanged
	assert.Same(t, next, h.Load())
	assert.True(t, prev.Empty())
	assert.Equal(t, "vector.index", prev.IndexPath)
}

func TestSnapshot_EmptyNilSafe(t *testing.T) {
	var s *Snapshot
	assert.True(t, s.Empty())
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(Options{Folders: []string{"x"}}, embed.NewStaticEmbedder(8))

	assert.Equal(t, 500, b.opts.ChunkSize)
	assert.Equal(t, 1, b.opts.Workers)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Index.FailFast = true

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, cfg.Corpus.Folders, opts.Folders)
	assert.Equal(t, cfg.Index.Path, opts.IndexPath)
	assert.Equal(t, cfg.Index.ChunkSize, opts.ChunkSize)
	assert.True(t, opts.FailFast)
	assert.Equal(t, cfg.Index.M, opts.M)
}
