package retrieve

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docqa/internal/store"
)

// defaultLoaderEntries bounds how many artifacts stay loaded at once.
const defaultLoaderEntries = 4

// loadIndex reads an artifact from disk.
var loadIndex = store.Load

// loaded is one artifact held in memory together with the file identity it was read from.
type loaded struct {
	index   *store.HNSWIndex
	meta    store.Meta
	modTime time.Time
	size    int64
}

// Loader reads index artifacts from disk and keeps them until the file changes.
type Loader struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, *loaded]
	logger *slog.Logger
	loads  int
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, *loaded](defaultLoaderEntries)
	return &Loader{cache: cache, logger: logger}
}

// Load returns the index at path. A cached copy is reused while the file's
// mtime and size are unchanged.
func (l *Loader) Load(path string) (*store.HNSWIndex, store.Meta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, store.Meta{}, fmt.Errorf("stat index artifact: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.cache.Get(path); ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.index, entry.meta, nil
	}

	start := time.Now()
	idx, meta, err := loadIndex(path)
	if err != nil {
		// A writer renames the graph before its sidecar; one reread covers
		// a load that landed between the two renames.
		l.logger.Debug("vector index load failed, retrying",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if info, err = os.Stat(path); err == nil {
			idx, meta, err = loadIndex(path)
		}
	}
	if err != nil {
		l.cache.Remove(path)
		return nil, store.Meta{}, err
	}
	l.loads++
	l.cache.Add(path, &loaded{index: idx, meta: meta, modTime: info.ModTime(), size: info.Size()})
	l.logger.Debug("vector index loaded",
		slog.String("path", path),
		slog.Int("rows", meta.Rows),
		slog.String("generation", meta.Generation),
		slog.Duration("elapsed", time.Since(start)))
	return idx, meta, nil
}

// Loads returns how many times an artifact was read from disk.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// Invalidate drops any cached copy of path.
func (l *Loader) Invalidate(path string) {
	l.cache.Remove(path)
}
