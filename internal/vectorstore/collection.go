// Package vectorstore provides per-namespace vector collections with
// cosine-similarity search.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

var tracer = otel.Tracer("ragd.vectorstore")

// Sentinel errors for vector store operations.
var (
	// ErrNamespaceNotFound is returned when a namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrDimensionMismatch is returned when a vector's dimension disagrees
	// with the collection's fixed dimension. Nothing is inserted.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLengthMismatch is returned when chunk and vector counts differ.
	ErrLengthMismatch = errors.New("chunks and vectors length mismatch")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Collection is an append-only, delete-capable store of chunk records
// scoped to one namespace.
//
// Adds, deletes and clears take the exclusive lock so concurrent searches
// always observe a consistent snapshot; searches take the shared lock and
// may run concurrently with each other.
type Collection struct {
	namespace string
	dimension int
	logger    *zap.Logger

	mu      sync.RWMutex
	records []ChunkRecord // insertion order, which also breaks score ties
}

// NewCollection creates an empty collection for one namespace with a fixed
// embedding dimension.
func NewCollection(namespace string, dimension int, logger *zap.Logger) (*Collection, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", ErrInvalidConfig)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collection{
		namespace: namespace,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Namespace returns the owning namespace id.
func (c *Collection) Namespace() string {
	return c.namespace
}

// Dimension returns the collection's fixed embedding dimension.
func (c *Collection) Dimension() int {
	return c.dimension
}

// Add inserts one document's chunks with their vectors and shared metadata.
//
// Chunk ids are assigned deterministically as "{document_id}_chunk_{index}"
// with index dense from 0. The insert is all-or-nothing: a chunk/vector
// count mismatch or any vector of the wrong dimension rejects the whole
// batch with no partial writes. Zero vectors are valid and stay searchable.
func (c *Collection) Add(ctx context.Context, documentID string, chunks []string, vectors [][]float32, meta ChunkMetadata) error {
	ctx, span := tracer.Start(ctx, "Collection.Add")
	defer span.End()

	span.SetAttributes(
		attribute.String("namespace", c.namespace),
		attribute.String("document_id", documentID),
		attribute.Int("chunk_count", len(chunks)),
	)

	if documentID == "" {
		err := fmt.Errorf("%w: document id is required", ErrInvalidConfig)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(chunks) != len(vectors) {
		err := fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// Validate every vector before touching state.
	for i, v := range vectors {
		if len(v) != c.dimension {
			err := fmt.Errorf("%w: vector %d has dimension %d, collection requires %d",
				ErrDimensionMismatch, i, len(v), c.dimension)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	now := timeNow()
	batch := make([]ChunkRecord, len(chunks))
	for i, text := range chunks {
		batch[i] = ChunkRecord{
			ID:         fmt.Sprintf("%s_chunk_%d", documentID, i),
			DocumentID: documentID,
			Index:      i,
			Text:       text,
			CharLength: len(text),
			Embedding:  vectors[i],
			CreatedAt:  now,
			Metadata:   meta,
		}
	}

	c.mu.Lock()
	c.records = append(c.records, batch...)
	c.mu.Unlock()

	ChunksInserted.Add(float64(len(batch)))
	span.SetStatus(codes.Ok, "success")

	c.logger.Debug("added chunks to collection",
		zap.String("namespace", c.namespace),
		zap.String("document_id", documentID),
		zap.Int("count", len(batch)),
	)

	return nil
}

// Search returns the top k records by cosine similarity, descending, with
// ties broken by insertion order (earlier-inserted chunk wins).
//
// The filter restricts the candidate set before top-k selection, so k is
// satisfied from the filtered set rather than padded from the full
// collection. Scores are clamped to [0, 1].
func (c *Collection) Search(ctx context.Context, query []float32, k int, filter *Filter) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Collection.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("namespace", c.namespace),
		attribute.Int("k", k),
	)

	if k <= 0 {
		err := fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
		span.SetStatus(codes.Error, err.Error())
		SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(query) != c.dimension {
		err := fmt.Errorf("%w: query has dimension %d, collection requires %d",
			ErrDimensionMismatch, len(query), c.dimension)
		span.SetStatus(codes.Error, err.Error())
		SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		record *ChunkRecord
		score  float64
		order  int
	}

	var candidates []scored
	for i := range c.records {
		r := &c.records[i]
		if !filter.matches(r) {
			continue
		}
		candidates = append(candidates, scored{
			record: r,
			score:  CosineSimilarity(query, r.Embedding),
			order:  i,
		})
	}

	// Stable on insertion order: equal scores keep the earlier record first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]SearchResult, k)
	for i := 0; i < k; i++ {
		r := candidates[i].record
		results[i] = SearchResult{
			ChunkID:    r.ID,
			DocumentID: r.DocumentID,
			ChunkIndex: r.Index,
			Text:       r.Text,
			Score:      candidates[i].score,
			Rank:       i,
			Metadata:   r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	SearchesTotal.WithLabelValues("success").Inc()

	return results, nil
}

// DeleteDocument removes every chunk whose document id matches and returns
// the count removed. A document with no chunks yields 0, not an error.
func (c *Collection) DeleteDocument(ctx context.Context, documentID string) int {
	ctx, span := tracer.Start(ctx, "Collection.DeleteDocument")
	defer span.End()

	span.SetAttributes(
		attribute.String("namespace", c.namespace),
		attribute.String("document_id", documentID),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.records[:0]
	deleted := 0
	for _, r := range c.records {
		if r.DocumentID == documentID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	c.records = kept

	span.SetAttributes(attribute.Int("deleted", deleted))
	span.SetStatus(codes.Ok, "success")

	if deleted > 0 {
		c.logger.Debug("deleted document chunks",
			zap.String("namespace", c.namespace),
			zap.String("document_id", documentID),
			zap.Int("count", deleted),
		)
	}

	return deleted
}

// Clear removes every record. Used by reprocessing for the atomic
// clear-and-recreate swap.
func (c *Collection) Clear(ctx context.Context) {
	_, span := tracer.Start(ctx, "Collection.Clear")
	defer span.End()

	c.mu.Lock()
	count := len(c.records)
	c.records = nil
	c.mu.Unlock()

	span.SetAttributes(
		attribute.String("namespace", c.namespace),
		attribute.Int("cleared", count),
	)
	span.SetStatus(codes.Ok, "success")
}

// Stats summarizes the collection's contents.
func (c *Collection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{ChunkCount: len(c.records)}
	if len(c.records) == 0 {
		return stats
	}

	docs := make(map[string]struct{})
	total := 0
	for _, r := range c.records {
		docs[r.DocumentID] = struct{}{}
		total += r.CharLength
	}
	stats.DocumentCount = len(docs)
	stats.AvgChunkSize = float64(total) / float64(len(c.records))

	return stats
}

// Records returns a snapshot copy of all records in insertion order.
// Embeddings are shared, not copied; callers must not mutate them.
func (c *Collection) Records() []ChunkRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ChunkRecord, len(c.records))
	copy(out, c.records)
	return out
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|), clamped to [0, 1].
//
// Negative similarities floor to 0: embeddings from the supported providers
// lean non-negative and the floor keeps user-facing relevance scores from
// going negative. A zero vector scores 0 against anything.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
