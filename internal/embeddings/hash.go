package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// defaultHashDimension matches the bge-small family so the hash provider can
// stand in for a real model without a dimension change.
const defaultHashDimension = 384

// HashProvider generates deterministic pseudo-embeddings from token hashes.
//
// It never fails and needs no network access, which makes it the terminal
// entry of a provider fallback chain and the default for offline operation
// and tests. Vectors are L2-normalized and non-negative, so cosine
// similarity behaves like the supported real providers: identical texts
// score 1.0 and token overlap raises the score.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash-based provider with the given dimension.
// A non-positive dimension falls back to the default.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = defaultHashDimension
	}
	return &HashProvider{dimension: dimension}
}

// Name identifies the provider.
func (p *HashProvider) Name() string {
	return "hash"
}

// Dimension returns the embedding dimension.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *HashProvider) Close() error {
	return nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return p.embed(text), nil
}

// embed buckets token hashes into the vector and L2-normalizes the result.
func (p *HashProvider) embed(text string) []float32 {
	vector := make([]float32, p.dimension)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[int(h.Sum32())%p.dimension]++
	}

	var sumSq float64
	for _, v := range vector {
		sumSq += float64(v) * float64(v)
	}
	if sumSq > 0 {
		norm := float32(1.0 / math.Sqrt(sumSq))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}

// Ensure HashProvider implements Provider.
var _ Provider = (*HashProvider)(nil)
