package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"rag-pipeline/internal/contextutil"
)

var _ Pinger = (*QdrantIndex)(nil)

// QdrantIndex implements VectorIndex on a Qdrant collection using Euclidean distance.
// Point ids are the numeric positions, so the collection survives restarts and
// the position counter is recovered from an exact point count.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int

	mu   sync.Mutex
	next int
}

// NewQdrantIndex connects to Qdrant, ensures the collection exists with the
// given vector size and loads the current point count.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantIndex(ctx context.Context, urlStr, collection string, dim int) (*QdrantIndex, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: collection,
		dim:        dim,
	}

	if err := idx.EnsureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	count, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to count points: %w", err)
	}
	idx.next = int(count)

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "qdrant index opened", "collection", collection, "points", count)
	return idx, nil
}

// grpcAddress derives the gRPC host and port from a Qdrant HTTP URL.
func grpcAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// Dimension returns the vector size.
func (q *QdrantIndex) Dimension() int {
	return q.dim
}

// Len returns the number of points appended so far.
func (q *QdrantIndex) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.next
}

// Append upserts vectors with ids start, start+1, ... and waits for the write to be applied.
// The position counter only advances once Qdrant acknowledges the write.
func (q *QdrantIndex) Append(ctx context.Context, vectors [][]float32) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	for i, vec := range vectors {
		if len(vec) != q.dim {
			return 0, fmt.Errorf("vector %d has size %d, expected %d: %w", i, len(vec), q.dim, ErrDimensionMismatch)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	start := q.next
	if len(vectors) == 0 {
		return start, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for i, vec := range vectors {
		pos := start + i
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(pos)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{"position": pos}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", q.collection, "count", len(points), "error", err)
		return 0, fmt.Errorf("failed to upsert points: %w", err)
	}

	q.next += len(vectors)
	logger.DebugContext(ctx, "appended points", "collection", q.collection, "start", start, "count", len(points))
	return start, nil
}

// Search queries the collection. Qdrant reports the plain Euclidean distance,
// which is squared here so scores match FlatIndex.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(query) != q.dim {
		return nil, fmt.Errorf("query has size %d, expected %d: %w", len(query), q.dim, ErrDimensionMismatch)
	}

	scoredPoints, err := q.client.Query(ctx, q.queryRequest(query, k))
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", q.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]Neighbor, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		if point.GetId() == nil {
			continue
		}
		hits = append(hits, Neighbor{
			Position: int(point.GetId().GetNum()),
			Distance: point.GetScore() * point.GetScore(),
		})
	}
	sortNeighbors(hits)

	logger.DebugContext(ctx, "search completed", "collection", q.collection, "k", k, "results", len(hits))
	return hits, nil
}

// queryRequest builds an exact k-nearest query. Exact search bypasses the HNSW
// graph so the true closest points are returned at any collection size.
func (q *QdrantIndex) queryRequest(query []float32, k int) *qdrant.QueryPoints {
	limit := uint64(k)
	return &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Params: &qdrant.SearchParams{
			Exact: qdrant.PtrOf(true),
		},
		WithPayload: qdrant.NewWithPayload(false),
	}
}

// Ping checks that the Qdrant server is reachable.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// EnsureCollection ensures the collection exists with the index vector size and Euclidean distance.
// If the collection exists, validates that both match.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", q.collection, "vector_size", q.dim)
		err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dim),
				Distance: qdrant.Distance_Euclid,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("collection vector params are invalid")
	}

	if int(params.GetSize()) != q.dim {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", q.dim, params.GetSize())
	}
	if params.GetDistance() != qdrant.Distance_Euclid {
		return fmt.Errorf("collection distance mismatch: expected %s, got %s", qdrant.Distance_Euclid, params.GetDistance())
	}

	logger.InfoContext(ctx, "collection validated", "collection", q.collection, "vector_size", q.dim)
	return nil
}
