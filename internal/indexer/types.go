package indexer

// Chunker splits normalized text into retrieval units.
type Chunker interface {
	Chunk(text string) []string
}

var _ Chunker = (*WordChunker)(nil)
