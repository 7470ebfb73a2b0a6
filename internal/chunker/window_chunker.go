package chunker

import (
	"fmt"

	"echochat/internal/domain"
)

// WindowChunker splits text into fixed-size character windows with overlap.
type WindowChunker struct {
	size    int
	overlap int
}

// New validates the window parameters at construction. overlap must be
// strictly smaller than size or the window would never advance.
func New(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping windows. Each chunk spans
// [start, start+size) clipped to the text length; the next window starts
// at start+size-overlap; iteration stops once a chunk reaches the end of
// the text. Offsets are byte offsets into text. Empty text yields no
// chunks. Extra is attached to every chunk unmodified.
func (c *WindowChunker) Chunk(text, source string, extra map[string]string) []domain.Chunk {
	var chunks []domain.Chunk
	start := 0
	idx := 0
	for start < len(text) {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, domain.Chunk{
			Text: text[start:end],
			Meta: domain.Metadata{
				Source:  source,
				ChunkID: idx,
				Start:   start,
				End:     end,
				Extra:   extra,
			},
		})
		if end == len(text) {
			break
		}
		start += c.size - c.overlap
		idx++
	}
	return chunks
}
