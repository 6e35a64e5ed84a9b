package indexer

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the number of words per chunk window.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of words shared by consecutive windows.
	DefaultChunkOverlap = 50
)

// WordChunker splits text into fixed-size, overlapping word windows.
// It is pure and deterministic; the zero value is not usable, use NewWordChunker.
type WordChunker struct {
	size    int
	overlap int
}

// NewWordChunker creates a chunker with the default 500-word windows and 50-word overlap.
func NewWordChunker() *WordChunker {
	return &WordChunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// NewWordChunkerWithSize creates a chunker with a custom window size and overlap.
// Overlap must be smaller than size so every window advances.
func NewWordChunkerWithSize(size, overlap int) (*WordChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &WordChunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in words.
func (c *WordChunker) Size() int { return c.size }

// Overlap returns the number of words shared by consecutive windows.
func (c *WordChunker) Overlap() int { return c.overlap }

// Chunk splits text into word windows.
//
// Whitespace runs are collapsed and the text is trimmed first; empty input yields no chunks.
// Windows start every size-overlap words and the last window is the first one whose end
// reaches the word count, so it may be shorter than size.
func (c *WordChunker) Chunk(text string) []string {
	// strings.Fields both normalizes and splits: runs of whitespace never produce empty words.
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	stride := c.size - c.overlap
	chunks := make([]string, 0, ExpectedChunkCount(len(words), c.size, c.overlap))
	for start := 0; start < len(words); start += stride {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if start+c.size >= len(words) {
			break
		}
	}
	return chunks
}

// ExpectedChunkCount returns how many windows Chunk produces for a text of wordCount words.
func ExpectedChunkCount(wordCount, size, overlap int) int {
	if wordCount <= 0 {
		return 0
	}
	if wordCount <= size {
		return 1
	}
	stride := size - overlap
	// Windows start at 0, stride, 2*stride, ... until one covers the tail.
	return (wordCount-size+stride-1)/stride + 1
}
