package vectorstore

import (
	"context"
	"fmt"
	"sync"
)

// FlatIndex is an in-memory exact L2 index. Every search scans all vectors.
// Vectors are copied into one contiguous buffer, so callers may reuse their slices.
type FlatIndex struct {
	mu   sync.RWMutex
	dim  int
	data []float32
}

// NewFlatIndex creates an empty index for vectors of size dim.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be greater than 0, got %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Dimension returns the vector size.
func (f *FlatIndex) Dimension() int {
	return f.dim
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dim
}

// Append stores vectors after the existing ones. Either all vectors are stored or none.
func (f *FlatIndex) Append(_ context.Context, vectors [][]float32) (int, error) {
	for i, vec := range vectors {
		if len(vec) != f.dim {
			return 0, fmt.Errorf("vector %d has size %d, expected %d: %w", i, len(vec), f.dim, ErrDimensionMismatch)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	start := len(f.data) / f.dim
	for _, vec := range vectors {
		f.data = append(f.data, vec...)
	}
	return start, nil
}

// Search performs an exhaustive nearest-neighbor scan.
func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has size %d, expected %d: %w", len(query), f.dim, ErrDimensionMismatch)
	}

	f.mu.RLock()
	n := len(f.data) / f.dim
	hits := make([]Neighbor, n)
	for pos := 0; pos < n; pos++ {
		hits[pos] = Neighbor{
			Position: pos,
			Distance: squaredL2(query, f.data[pos*f.dim:(pos+1)*f.dim]),
		}
	}
	f.mu.RUnlock()

	sortNeighbors(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
