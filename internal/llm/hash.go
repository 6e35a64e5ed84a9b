package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedderModel is the model name reported by HashEmbedder.
const HashEmbedderModel = "feature-hash-v1"

// HashEmbedder is a local, deterministic embedder based on the hashing trick.
// Lowercased word unigrams and bigrams are hashed into a fixed number of signed
// buckets and the result is L2-normalized. It needs no model server, so the
// service can run standalone; identical text always yields an identical vector.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hashing embedder producing vectors of size dim.
func NewHashEmbedder(dim int) (*HashEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than 0, got %d", dim)
	}
	return &HashEmbedder{dim: dim}, nil
}

// ModelName returns HashEmbedderModel.
func (e *HashEmbedder) ModelName() string {
	return HashEmbedderModel
}

// Dimension returns the vector size.
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

// EmbedTexts embeds each text independently. Text with no word characters maps to the zero vector.
func (e *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float64, e.dim)
	tokens := tokenize(text)

	for i, tok := range tokens {
		e.add(vec, tok, 1.0)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *HashEmbedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dim))
	// The top bit picks the sign so collisions cancel out on average.
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
