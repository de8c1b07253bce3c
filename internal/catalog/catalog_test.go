package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/ragd/internal/catalog"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDocumentLifecycle(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	doc := catalog.Document{
		ID:          "doc1",
		NamespaceID: "kb1",
		Title:       "First Document",
		SourcePath:  "/data/first.txt",
		Status:      catalog.StatusPending,
	}
	require.NoError(t, c.UpsertDocument(ctx, doc))

	got, err := c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, got.Status)
	assert.Equal(t, "First Document", got.Title)

	require.NoError(t, c.SetStatus(ctx, "doc1", catalog.StatusProcessing))
	require.NoError(t, c.Complete(ctx, "doc1", 7))

	got, err = c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCompleted, got.Status)
	assert.Equal(t, 7, got.ChunkCount)
}

func TestGetDocumentNotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.GetDocument(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrDocumentNotFound)

	err = c.SetStatus(context.Background(), "missing", catalog.StatusFailed)
	require.ErrorIs(t, err, catalog.ErrDocumentNotFound)
}

func TestListByNamespace(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, c.UpsertDocument(ctx, catalog.Document{
			ID: id, NamespaceID: "kb1", Status: catalog.StatusPending,
		}))
	}
	require.NoError(t, c.UpsertDocument(ctx, catalog.Document{
		ID: "other", NamespaceID: "kb2", Status: catalog.StatusPending,
	}))

	docs, err := c.ListByNamespace(ctx, "kb1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

func TestMarkNamespaceOrphaned(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertDocument(ctx, catalog.Document{
		ID: "doc1", NamespaceID: "kb1", Status: catalog.StatusCompleted,
	}))

	n, err := c.MarkNamespaceOrphaned(ctx, "kb1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusOrphaned, got.Status)
}

func TestChunkSnapshotRoundTrip(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertDocument(ctx, catalog.Document{
		ID: "doc1", NamespaceID: "kb1", Status: catalog.StatusCompleted,
	}))

	texts := []string{"first chunk", "second chunk"}
	vectors := [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}
	require.NoError(t, c.ReplaceChunks(ctx, "doc1", texts, vectors))

	loaded, err := c.LoadNamespaceChunks(ctx, "kb1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "doc1", loaded[0].DocumentID)
	assert.Equal(t, texts, loaded[0].Texts)
	assert.Equal(t, vectors, loaded[0].Vectors)

	// Replacing again drops the old snapshot.
	require.NoError(t, c.ReplaceChunks(ctx, "doc1", []string{"only"}, [][]float32{{1, 2, 3}}))
	loaded, err = c.LoadNamespaceChunks(ctx, "kb1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, []string{"only"}, loaded[0].Texts)
}

func TestDeleteNamespaceCascadesChunks(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.UpsertDocument(ctx, catalog.Document{
		ID: "doc1", NamespaceID: "kb1", Status: catalog.StatusCompleted,
	}))
	require.NoError(t, c.ReplaceChunks(ctx, "doc1", []string{"x"}, [][]float32{{1}}))

	n, err := c.DeleteNamespace(ctx, "kb1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := c.LoadNamespaceChunks(ctx, "kb1")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
