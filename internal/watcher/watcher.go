package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/docqa/internal/extract"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new document appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing document was written.
	OpModify
	// OpDelete indicates a document was removed.
	OpDelete
	// OpRename indicates a document was moved away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a corpus document.
type FileEvent struct {
	// Path is the document path as seen under its corpus folder.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// RebuildFunc rebuilds the index. It is called once per debounced batch.
type RebuildFunc func(ctx context.Context) error

// DefaultDebounce is the quiet period before a batch triggers a rebuild.
const DefaultDebounce = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	// Folders are the corpus folders. Each is watched non-recursively,
	// matching how the scanner reads them.
	Folders []string

	// Debounce is the quiet period after the last event. Default: 2s
	Debounce time.Duration

	Logger *slog.Logger
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher rebuilds the index when documents in the corpus folders change.
type Watcher struct {
	opts      Options
	rebuild   RebuildFunc
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	watched   []string

	mu       sync.Mutex
	started  bool
	rebuilds atomic.Int64
	failures atomic.Int64
}

// New creates a Watcher over opts.Folders. Folders that do not exist are
// skipped; at least one must be watchable.
func New(opts Options, rebuild RebuildFunc) (*Watcher, error) {
	if rebuild == nil {
		return nil, errors.New("watcher: rebuild function is required")
	}
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		opts:      opts,
		rebuild:   rebuild,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce, opts.Logger),
	}

	for _, folder := range opts.Folders {
		info, err := os.Stat(folder)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				opts.Logger.Debug("corpus folder missing, not watching", slog.String("folder", folder))
				continue
			}
			_ = fsw.Close()
			return nil, fmt.Errorf("stat corpus folder %s: %w", folder, err)
		}
		if !info.IsDir() {
			continue
		}
		if err := fsw.Add(folder); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch corpus folder %s: %w", folder, err)
		}
		w.watched = append(w.watched, folder)
	}

	if len(w.watched) == 0 {
		_ = fsw.Close()
		w.debouncer.Stop()
		return nil, errors.New("watcher: no corpus folder exists")
	}
	return w, nil
}

// Folders returns the folders being watched.
func (w *Watcher) Folders() []string {
	return append([]string(nil), w.watched...)
}

// Rebuilds returns how many rebuilds the watcher has triggered.
func (w *Watcher) Rebuilds() int64 {
	return w.rebuilds.Load()
}

// Failures returns how many triggered rebuilds returned an error.
func (w *Watcher) Failures() int64 {
	return w.failures.Load()
}

// Run watches until ctx is done. Rebuild failures are logged and do not stop
// the watcher. Run may be called once.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("watcher: already running")
	}
	w.started = true
	w.mu.Unlock()

	defer w.close()

	w.opts.Logger.Info("watching corpus folders",
		slog.Any("folders", w.watched),
		slog.Duration("debounce", w.opts.Debounce))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("file watcher error", slog.String("error", err.Error()))
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			w.trigger(ctx, batch)
		}
	}
}

// handle filters an fsnotify event down to supported documents.
func (w *Watcher) handle(event fsnotify.Event) {
	if !extract.Supported(filepath.Base(event.Name)) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: event.Name, Operation: op, Timestamp: time.Now()})
}

// trigger runs one rebuild for a debounced batch.
func (w *Watcher) trigger(ctx context.Context, batch []FileEvent) {
	w.rebuilds.Add(1)
	start := time.Now()

	err := w.rebuild(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.failures.Add(1)
		w.opts.Logger.Warn("watch rebuild failed",
			slog.Int("changes", len(batch)),
			slog.String("error", err.Error()))
		return
	}

	w.opts.Logger.Info("watch rebuild complete",
		slog.Int("changes", len(batch)),
		slog.String("first", batch[0].Path),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}

func (w *Watcher) close() {
	w.debouncer.Stop()
	_ = w.fsw.Close()
}
