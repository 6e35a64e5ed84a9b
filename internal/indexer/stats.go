package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ChunkerVersion identifies the chunking algorithm. Bump it when chunk boundaries change.
const ChunkerVersion = "words-v1"

// ChunkStats summarizes the word counts of a document's chunks.
type ChunkStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeChunkStats computes min, max, mean, and p95 word counts over chunks.
func ComputeChunkStats(chunks []string) ChunkStats {
	if len(chunks) == 0 {
		return ChunkStats{}
	}

	counts := make([]int, len(chunks))
	for i, chunk := range chunks {
		counts[i] = len(strings.Fields(chunk))
	}
	sort.Ints(counts)

	sum := 0
	for _, count := range counts {
		sum += count
	}
	mean := float64(sum) / float64(len(counts))

	p95Index := int(math.Ceil(float64(len(counts))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}
	if p95Index >= len(counts) {
		p95Index = len(counts) - 1
	}

	return ChunkStats{
		Min:  counts[0],
		Max:  counts[len(counts)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  counts[p95Index],
	}
}

// IndexVersion returns a short hash identifying an index build:
// the chunker version, its parameters and the embedding model.
// Vectors produced under different index versions are not comparable.
func IndexVersion(c *WordChunker, embeddingModel string) string {
	input := fmt.Sprintf("%s|%s|size=%d|overlap=%d", ChunkerVersion, embeddingModel, c.size, c.overlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
