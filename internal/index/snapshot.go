// Package index rebuilds the vector index from the document corpus and
// publishes each result as an immutable snapshot.
package index

import (
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/docqa/internal/chunk"
	"github.com/Aman-CERP/docqa/internal/scanner"
	"github.com/Aman-CERP/docqa/internal/store"
)

// Snapshot is the result of one rebuild. It is never modified after it is
// published, so readers may use it without locking.
//
// Chunks[i].Key == i, and the vector stored under key i in Index, and in
// the artifact written to IndexPath under Generation, belongs to Chunks[i].
type Snapshot struct {
	Generation string
	BuiltAt    time.Time
	Files      []scanner.FileRecord
	Chunks     []chunk.Chunk
	IndexPath  string
	Dimensions int

	// Index is the graph built together with Chunks. It is nil when the
	// snapshot has no chunks, and is only searched after publication.
	Index *store.HNSWIndex
}

// EmptySnapshot is the snapshot a process starts with.
func EmptySnapshot(indexPath string) *Snapshot {
	return &Snapshot{
		Files:     []scanner.FileRecord{},
		Chunks:    []chunk.Chunk{},
		IndexPath: indexPath,
	}
}

// Empty reports whether the snapshot has no chunks to search.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Chunks) == 0
}

// Filenames returns the file paths in scan order.
func (s *Snapshot) Filenames() []string {
	names := make([]string, len(s.Files))
	for i, f := range s.Files {
		names[i] = f.Filename
	}
	return names
}

// Holder publishes the current snapshot.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder creates a holder containing initial.
func NewHolder(initial *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(initial)
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap publishes next and returns the previous snapshot.
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}
