package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/vectorstore"
)

func newTestCollection(t *testing.T, dimension int) *vectorstore.Collection {
	t.Helper()
	col, err := vectorstore.NewCollection("test_namespace", dimension, zap.NewNop())
	require.NoError(t, err)
	return col
}

func TestNewCollectionValidation(t *testing.T) {
	_, err := vectorstore.NewCollection("", 4, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	_, err = vectorstore.NewCollection("ns", 0, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestAddAssignsDeterministicChunkIDs(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	err := col.Add(ctx, "doc1", []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, vectorstore.ChunkMetadata{})
	require.NoError(t, err)

	records := col.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "doc1_chunk_0", records[0].ID)
	assert.Equal(t, "doc1_chunk_1", records[1].ID)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, 1, records[1].Index)
}

func TestAddRejectsLengthMismatchWithoutPartialInsert(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	err := col.Add(ctx, "doc1", []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}}, vectorstore.ChunkMetadata{})
	require.ErrorIs(t, err, vectorstore.ErrLengthMismatch)
	assert.Equal(t, 0, col.Stats().ChunkCount)
}

func TestAddRejectsDimensionMismatchWithoutPartialInsert(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	// Second vector has the wrong dimension; the first must not land either.
	err := col.Add(ctx, "doc1", []string{"a", "b"}, [][]float32{{1, 0}, {1, 2, 3}}, vectorstore.ChunkMetadata{})
	require.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	assert.Equal(t, 0, col.Stats().ChunkCount)
}

func TestAddAcceptsZeroVectors(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	err := col.Add(ctx, "doc1", []string{"fallback chunk"}, [][]float32{{0, 0}}, vectorstore.ChunkMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 1, col.Stats().ChunkCount)

	// Zero-vector chunks stay searchable, they just score the floor.
	results, err := col.Search(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestSearchRanksByScoreDescending(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	require.NoError(t, col.Add(ctx, "doc1",
		[]string{"orthogonal", "aligned", "diagonal"},
		[][]float32{{0, 1}, {1, 0}, {1, 1}},
		vectorstore.ChunkMetadata{}))

	results, err := col.Search(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "aligned", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "diagonal", results[1].Text)
	assert.Equal(t, "orthogonal", results[2].Text)

	for i, r := range results {
		assert.Equal(t, i, r.Rank)
	}
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestSearchTiesResolveByInsertionOrder(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	// Identical vectors: the earlier-inserted chunk must win.
	require.NoError(t, col.Add(ctx, "doc1", []string{"first"}, [][]float32{{1, 0}}, vectorstore.ChunkMetadata{}))
	require.NoError(t, col.Add(ctx, "doc2", []string{"second"}, [][]float32{{1, 0}}, vectorstore.ChunkMetadata{}))

	results, err := col.Search(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Text)
	assert.Equal(t, "second", results[1].Text)
}

func TestSearchRespectsK(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	require.NoError(t, col.Add(ctx, "doc1",
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {1, 2}},
		vectorstore.ChunkMetadata{}))

	results, err := col.Search(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = col.Search(ctx, []float32{1, 0}, 100, nil)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestSearchFilterAppliesBeforeTopK(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	// doc1 chunks score higher; a doc2 filter must still fill k from doc2.
	require.NoError(t, col.Add(ctx, "doc1",
		[]string{"d1a", "d1b"}, [][]float32{{1, 0}, {0.9, 0.1}}, vectorstore.ChunkMetadata{}))
	require.NoError(t, col.Add(ctx, "doc2",
		[]string{"d2a", "d2b"}, [][]float32{{0, 1}, {0.1, 0.9}}, vectorstore.ChunkMetadata{}))

	results, err := col.Search(ctx, []float32{1, 0}, 2, &vectorstore.Filter{DocumentID: "doc2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "doc2", r.DocumentID)
	}
}

func TestSearchMetadataPredicateFilter(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	require.NoError(t, col.Add(ctx, "doc1", []string{"report"}, [][]float32{{1, 0}},
		vectorstore.ChunkMetadata{Strategy: "sentence"}))
	require.NoError(t, col.Add(ctx, "doc2", []string{"table"}, [][]float32{{1, 0}},
		vectorstore.ChunkMetadata{Strategy: "token"}))

	results, err := col.Search(ctx, []float32{1, 0}, 10, &vectorstore.Filter{
		Predicate: func(m vectorstore.ChunkMetadata) bool { return m.Strategy == "token" },
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "table", results[0].Text)
}

func TestSearchValidation(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	_, err := col.Search(ctx, []float32{1, 0}, 0, nil)
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	_, err = col.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestDeleteDocument(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	require.NoError(t, col.Add(ctx, "doc1", []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, vectorstore.ChunkMetadata{}))
	require.NoError(t, col.Add(ctx, "doc2", []string{"c"}, [][]float32{{1, 1}}, vectorstore.ChunkMetadata{}))

	assert.Equal(t, 2, col.DeleteDocument(ctx, "doc1"))
	assert.Equal(t, 1, col.Stats().ChunkCount)

	// No matching chunks is 0, not an error.
	assert.Equal(t, 0, col.DeleteDocument(ctx, "doc1"))
}

func TestStats(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()

	assert.Equal(t, vectorstore.Stats{}, col.Stats())

	// Two Add calls for the same document: document_count counts distinct
	// ids, not Add calls.
	require.NoError(t, col.Add(ctx, "doc1", []string{"ab"}, [][]float32{{1, 0}}, vectorstore.ChunkMetadata{}))
	require.NoError(t, col.Add(ctx, "doc1", []string{"abcd"}, [][]float32{{0, 1}}, vectorstore.ChunkMetadata{}))
	require.NoError(t, col.Add(ctx, "doc2", []string{"abcdef"}, [][]float32{{1, 1}}, vectorstore.ChunkMetadata{}))

	stats := col.Stats()
	assert.Equal(t, 3, stats.ChunkCount)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.InDelta(t, 4.0, stats.AvgChunkSize, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("self similarity is 1", func(t *testing.T) {
		v := []float32{0.3, 0.5, 0.2}
		assert.InDelta(t, 1.0, vectorstore.CosineSimilarity(v, v), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := []float32{1, 2, 3}
		b := []float32{4, 5, 6}
		assert.Equal(t, vectorstore.CosineSimilarity(a, b), vectorstore.CosineSimilarity(b, a))
	})

	t.Run("negative similarity floors to 0", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{-1, 0}
		assert.Equal(t, 0.0, vectorstore.CosineSimilarity(a, b))
	})

	t.Run("zero vector scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, vectorstore.CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	})

	t.Run("length mismatch scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, vectorstore.CosineSimilarity([]float32{1}, []float32{1, 0}))
	})

	t.Run("bounded in unit interval", func(t *testing.T) {
		vectors := [][]float32{{1, 2}, {3, -4}, {-5, 6}, {0.1, 0.9}}
		for _, a := range vectors {
			for _, b := range vectors {
				sim := vectorstore.CosineSimilarity(a, b)
				assert.GreaterOrEqual(t, sim, 0.0)
				assert.LessOrEqual(t, sim, 1.0)
			}
		}
	})
}
