// Package store persists chunk vectors in an HNSW graph under Euclidean distance.
package store

import (
	"fmt"
)

// MetricL2 is the only metric the index supports.
const MetricL2 = "l2"

// metaVersion is bumped when the sidecar layout changes.
const metaVersion = 1

// MetaSuffix is appended to the artifact path to name its sidecar.
const MetaSuffix = ".meta"

// Config configures a new index.
type Config struct {
	// Dimensions every vector must have.
	Dimensions int

	// M is the maximum number of neighbours per graph node.
	M int

	// EfSearch is the candidate list size used during search.
	EfSearch int
}

// DefaultConfig returns a config for vectors of dims dimensions.
func DefaultConfig(dims int) Config {
	return Config{
		Dimensions: dims,
		M:          16,
		EfSearch:   64,
	}
}

// Meta is the sidecar written next to the artifact.
type Meta struct {
	Version    int
	Dimensions int
	Metric     string
	Rows       int
	Generation string
	M          int
	EfSearch   int
}

// Result is a single nearest-neighbour hit.
type Result struct {
	// Key is the chunk's global position in the snapshot.
	Key uint64

	// Distance is the squared Euclidean distance to the query.
	Distance float32
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the index)", e.Expected, e.Got)
}
