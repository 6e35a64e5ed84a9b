package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_index.go -package=mocks rag-pipeline/internal/vectorstore VectorIndex

import (
	"context"
	"errors"
	"sort"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Neighbor is a single nearest-neighbor hit.
type Neighbor struct {
	// Position is the slot the vector was assigned when it was appended.
	Position int
	// Distance is the squared Euclidean distance to the query.
	Distance float32
}

// VectorIndex is an append-only, ordered collection of fixed-dimension vectors.
//
// Positions are dense, zero-based and assigned at append time. They are never
// reused: there is no removal or compaction. Implementations are safe for
// concurrent use, but callers that need Len and Append to be atomic together
// must serialize them.
type VectorIndex interface {
	// Dimension returns the size every vector must have.
	Dimension() int

	// Len returns the number of vectors ever appended.
	Len() int

	// Append adds vectors contiguously and returns the position of the first one.
	Append(ctx context.Context, vectors [][]float32) (start int, err error)

	// Search returns the min(k, Len()) vectors closest to query,
	// ordered by ascending squared Euclidean distance, ties by lower position.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
}

// Pinger is implemented by indexes backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// sortNeighbors orders hits closest first, breaking ties by position.
func sortNeighbors(hits []Neighbor) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
}
