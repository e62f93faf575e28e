// Package chunk splits extracted document text into fixed-size pieces.
package chunk

// DefaultSize is the default chunk length in characters.
const DefaultSize = 500

// Chunk is one retrievable piece of a document.
type Chunk struct {
	// Key is the chunk's position in the snapshot-wide chunk list. It is also
	// the key of the chunk's vector in the index.
	Key uint64 `json:"key"`

	// File is the source path as the scanner produced it.
	File string `json:"file"`

	// ChunkID is the zero-based position of the chunk within its file.
	ChunkID int `json:"chunk_id"`

	// Text is the chunk content.
	Text string `json:"text"`
}
