package store

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex holds chunk vectors keyed by their global chunk position. The
// coder/hnsw graph is the persisted container; Search ranks every stored
// vector by exact L2 distance.
type HNSWIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	cfg   Config

	// keys[i] and vecs[i] mirror the graph's nodes in insertion order.
	keys []uint64
	vecs [][]float32
	pos  map[uint64]int
}

// NewHNSWIndex creates an empty index.
func NewHNSWIndex(cfg Config) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %d", cfg.Dimensions)
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 20
	}
	return &HNSWIndex{graph: newGraph(cfg), cfg: cfg, pos: make(map[uint64]int)}, nil
}

func newGraph(cfg Config) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Add inserts vectors under keys. keys[i] is the key of vectors[i].
func (x *HNSWIndex) Add(keys []uint64, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys and vectors length mismatch: %d vs %d", len(keys), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != x.cfg.Dimensions {
			return ErrDimensionMismatch{Expected: x.cfg.Dimensions, Got: len(v)}
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	seen := make(map[uint64]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := x.pos[key]; ok {
			return fmt.Errorf("duplicate key %d", key)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate key %d", key)
		}
		seen[key] = struct{}{}
	}

	nodes := make([]hnsw.Node[uint64], len(keys))
	for i, key := range keys {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		nodes[i] = hnsw.MakeNode(key, vec)
		x.put(key, vec)
	}
	if len(nodes) > 0 {
		x.graph.Add(nodes...)
	}
	return nil
}

// put records vec under key. Callers have checked that key is new.
func (x *HNSWIndex) put(key uint64, vec []float32) {
	x.pos[key] = len(x.keys)
	x.keys = append(x.keys, key)
	x.vecs = append(x.vecs, vec)
}

// Search returns the k nearest keys by exact squared L2 distance, nearest
// first. Equal distances are ordered by key.
func (x *HNSWIndex) Search(query []float32, k int) ([]Result, error) {
	if len(query) != x.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: x.cfg.Dimensions, Got: len(query)}
	}
	if k <= 0 {
		return []Result{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]Result, len(x.keys))
	for i, key := range x.keys {
		results[i] = Result{Key: key, Distance: squaredL2(query, x.vecs[i])}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Key < results[j].Key
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of vectors in the index.
func (x *HNSWIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.graph.Len()
}

// Dimensions returns the vector dimension.
func (x *HNSWIndex) Dimensions() int {
	return x.cfg.Dimensions
}

// Save writes the graph to path and its sidecar to path+".meta".
// Both files are written to temporaries first; an error before the
// renames leaves any previous artifact untouched.
func (x *HNSWIndex) Save(path, generation string) (err error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpIndex := path + ".tmp"
	tmpMeta := path + MetaSuffix + ".tmp"
	defer func() {
		if err != nil {
			_ = os.Remove(tmpIndex)
			_ = os.Remove(tmpMeta)
		}
	}()

	if err := writeFileSync(tmpIndex, func(f *os.File) error {
		w := bufio.NewWriter(f)
		if err := x.graph.Export(w); err != nil {
			return fmt.Errorf("failed to export graph: %w", err)
		}
		return w.Flush()
	}); err != nil {
		return err
	}

	meta := Meta{
		Version:    metaVersion,
		Dimensions: x.cfg.Dimensions,
		Metric:     MetricL2,
		Rows:       x.graph.Len(),
		Generation: generation,
		M:          x.cfg.M,
		EfSearch:   x.cfg.EfSearch,
	}
	if err := writeFileSync(tmpMeta, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(meta)
	}); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := os.Rename(tmpIndex, path); err != nil {
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	if err := os.Rename(tmpMeta, path+MetaSuffix); err != nil {
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}
	return nil
}

// writeFileSync creates path, lets fill write it, then syncs and closes.
func writeFileSync(path string, fill func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// Load reads an index and its sidecar from path.
func Load(path string) (*HNSWIndex, Meta, error) {
	meta, err := ReadMeta(path)
	if err != nil {
		return nil, Meta{}, err
	}
	if meta.Metric != MetricL2 {
		return nil, Meta{}, fmt.Errorf("unsupported metric %q", meta.Metric)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close index file", slog.String("error", err.Error()))
		}
	}()

	cfg := Config{Dimensions: meta.Dimensions, M: meta.M, EfSearch: meta.EfSearch}
	x, err := NewHNSWIndex(cfg)
	if err != nil {
		return nil, Meta{}, err
	}

	// coder/hnsw Import requires an io.ByteReader
	if err := x.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, Meta{}, fmt.Errorf("failed to import graph: %w", err)
	}
	x.graph.Distance = hnsw.EuclideanDistance

	if x.graph.Len() != meta.Rows {
		return nil, Meta{}, fmt.Errorf("index has %d rows, metadata says %d", x.graph.Len(), meta.Rows)
	}

	// Keys are chunk positions, so rows are exactly 0..Rows-1.
	for key := uint64(0); key < uint64(meta.Rows); key++ {
		vec, ok := x.graph.Lookup(key)
		if !ok {
			return nil, Meta{}, fmt.Errorf("index is missing row %d", key)
		}
		if len(vec) != meta.Dimensions {
			return nil, Meta{}, ErrDimensionMismatch{Expected: meta.Dimensions, Got: len(vec)}
		}
		x.put(key, vec)
	}
	return x, meta, nil
}

// ReadMeta decodes the sidecar of the artifact at path.
func ReadMeta(path string) (Meta, error) {
	file, err := os.Open(path + MetaSuffix)
	if err != nil {
		return Meta{}, fmt.Errorf("open metadata file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var meta Meta
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return Meta{}, fmt.Errorf("decode index metadata: %w", err)
	}
	if meta.Version != metaVersion {
		return Meta{}, fmt.Errorf("unsupported metadata version %d", meta.Version)
	}
	return meta, nil
}

// Remove deletes the artifact and its sidecar. Missing files are not an error.
func Remove(path string) error {
	var errs []error
	for _, p := range []string{path, path + MetaSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// squaredL2 is the squared Euclidean distance between a and b.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
