package llm

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// CachingEmbedder wraps an Embedder with a bounded LRU keyed by model and text.
// Only texts missing from the cache are forwarded, in a single batch.
type CachingEmbedder struct {
	inner  Embedder
	model  string
	cache  *lru.Cache[string, []float32]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachingEmbedder creates a cache of at most size vectors in front of inner.
// model namespaces the keys so vectors from different models never mix.
func NewCachingEmbedder(inner Embedder, model string, size int) (*CachingEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachingEmbedder{
		inner: inner,
		model: model,
		cache: cache,
	}, nil
}

// ModelName returns the model the cache is keyed on.
func (c *CachingEmbedder) ModelName() string {
	return c.model
}

// EmbedTexts returns cached vectors where available and embeds the rest.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	out := make([][]float32, len(texts))
	// missing maps a text to every input slot waiting for it.
	missing := make(map[string][]int)
	var batch []string

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			c.hits.Add(1)
			out[i] = vec
			continue
		}
		c.misses.Add(1)
		if _, seen := missing[text]; !seen {
			batch = append(batch, text)
		}
		missing[text] = append(missing[text], i)
	}

	if len(batch) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedTexts(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vecs))
	}

	for i, text := range batch {
		c.cache.Add(c.key(text), vecs[i])
		for _, slot := range missing[text] {
			out[slot] = vecs[i]
		}
	}
	return out, nil
}

// Stats returns hit and miss counters and the current number of cached vectors.
func (c *CachingEmbedder) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}

func (c *CachingEmbedder) key(text string) string {
	return c.model + "\x00" + text
}
