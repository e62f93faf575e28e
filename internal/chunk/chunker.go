package chunk

import "unicode/utf8"

// Split cuts text into consecutive, non-overlapping pieces of at most size
// characters. The pieces concatenate back to text. Boundaries ignore words
// and sentences. size <= 0 uses DefaultSize.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if text == "" {
		return []string{}
	}

	pieces := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			pieces = append(pieces, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(pieces, text[start:])
}

// Document splits a file's text and assigns keys starting at firstKey.
func Document(file, text string, size int, firstKey uint64) []Chunk {
	pieces := Split(text, size)
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			Key:     firstKey + uint64(i),
			File:    file,
			ChunkID: i,
			Text:    p,
		}
	}
	return chunks
}
