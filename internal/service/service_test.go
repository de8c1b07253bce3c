package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/ragd/internal/catalog"
	"github.com/stratalabs/ragd/internal/chunker"
	"github.com/stratalabs/ragd/internal/embeddings"
	"github.com/stratalabs/ragd/internal/reprocess"
	"github.com/stratalabs/ragd/internal/retrieval"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

const testDimension = 64

func newTestService(t *testing.T, completer embeddings.Completer) (*Service, *catalog.Catalog) {
	t.Helper()

	cat, err := catalog.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	registry, err := vectorstore.NewRegistry(testDimension, nil)
	require.NoError(t, err)

	gateway, err := embeddings.NewGateway([]embeddings.Provider{embeddings.NewHashProvider(testDimension)}, nil)
	require.NoError(t, err)

	return New(cat, registry, gateway, nil, completer, nil), cat
}

func TestIngestValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"missing namespace", IngestRequest{Text: "hello"}},
		{"missing content", IngestRequest{NamespaceID: "kb"}},
		{"both text and path", IngestRequest{NamespaceID: "kb", Text: "hello", SourcePath: "/tmp/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		Text:        "hello",
		Chunking:    chunker.Options{Strategy: "bogus"},
	})
	assert.ErrorIs(t, err, chunker.ErrInvalidOptions)
}

func TestIngestText(t *testing.T) {
	svc, cat := newTestService(t, nil)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Title:       "notes",
		Text:        "First sentence here. Second sentence there. Third closes it.",
		Chunking:    chunker.Options{Strategy: chunker.StrategySentence, MaxSize: 25},
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, 3, result.ChunksCreated)
	assert.Equal(t, 3, result.EmbeddingsGenerated)

	doc, err := cat.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusCompleted, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)

	stats, err := svc.NamespaceStats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestIngestGeneratesDocumentID(t *testing.T) {
	svc, _ := newTestService(t, nil)

	result, err := svc.Ingest(context.Background(), IngestRequest{NamespaceID: "kb", Text: "Some text."})
	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentID)
}

func TestIngestReplacesExistingDocument(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Text:        "Alpha beta. Gamma delta.",
		Chunking:    chunker.Options{MaxSize: 12},
	})
	require.NoError(t, err)

	result, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Text:        "Single short text.",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)

	stats, err := svc.NamespaceStats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestIngestFromFile(t *testing.T) {
	svc, cat := newTestService(t, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("Quarterly results improved. Margins are stable."), 0o644))

	result, err := svc.Ingest(ctx, IngestRequest{NamespaceID: "kb", DocumentID: "doc-file", SourcePath: path})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)

	doc, err := cat.GetDocument(ctx, "doc-file")
	require.NoError(t, err)
	assert.Equal(t, "report.txt", doc.Title)
	assert.Equal(t, path, doc.SourcePath)
}

func TestIngestMissingFileMarksFailed(t *testing.T) {
	svc, cat := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-missing",
		SourcePath:  filepath.Join(t.TempDir(), "absent.txt"),
	})
	require.Error(t, err)

	doc, err := cat.GetDocument(ctx, "doc-missing")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusFailed, doc.Status)
}

func TestQueryEndToEnd(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Text:        "The warehouse inventory system tracks stock levels. Orders ship within two days.",
		Chunking:    chunker.Options{MaxSize: 50},
	})
	require.NoError(t, err)

	resp, err := svc.Query(ctx, "kb", "warehouse inventory stock", 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "doc-1", resp.Results[0].DocumentID)
	assert.Greater(t, resp.Confidence, 0.0)

	_, err = svc.Query(ctx, "ghost", "anything", 3, 0)
	assert.ErrorIs(t, err, vectorstore.ErrNamespaceNotFound)
}

func TestNamespaceLifecycle(t *testing.T) {
	svc, cat := newTestService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.CreateNamespace(ctx, "kb"))
	require.NoError(t, svc.CreateNamespace(ctx, "kb")) // idempotent
	assert.Equal(t, []string{"kb"}, svc.ListNamespaces())

	_, err := svc.Ingest(ctx, IngestRequest{NamespaceID: "kb", DocumentID: "doc-1", Text: "Some text."})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNamespace(ctx, "kb"))
	assert.Empty(t, svc.ListNamespaces())

	_, err = svc.NamespaceStats(ctx, "kb")
	assert.ErrorIs(t, err, vectorstore.ErrNamespaceNotFound)

	// Catalog rows survive as orphans.
	doc, err := cat.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusOrphaned, doc.Status)
}

func TestLoadNamespaceRestoresFromCatalog(t *testing.T) {
	svc, cat := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Text:        "Restoring from snapshots works. No re-embedding needed.",
		Chunking:    chunker.Options{MaxSize: 30},
	})
	require.NoError(t, err)
	before, err := svc.NamespaceStats(ctx, "kb")
	require.NoError(t, err)

	// Simulate a restart with a fresh registry over the same catalog.
	registry, err := vectorstore.NewRegistry(testDimension, nil)
	require.NoError(t, err)
	gateway, err := embeddings.NewGateway([]embeddings.Provider{embeddings.NewHashProvider(testDimension)}, nil)
	require.NoError(t, err)
	restarted := New(cat, registry, gateway, nil, nil, nil)

	restored, err := restarted.LoadNamespace(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	after, err := restarted.NamespaceStats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, before.ChunkCount, after.ChunkCount)

	resp, err := restarted.Query(ctx, "kb", "restoring snapshots", 3, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestReprocessThroughService(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Text:        "One sentence here. Another sentence there.",
	})
	require.NoError(t, err)

	job, err := svc.Reprocess(ctx, "kb", chunker.Options{Strategy: chunker.StrategySentence, MaxSize: 25})
	require.NoError(t, err)
	select {
	case <-job.Done:
	case <-time.After(10 * time.Second):
		t.Fatal("reprocessing did not finish")
	}

	status, err := svc.ReprocessingStatus("kb")
	require.NoError(t, err)
	assert.Equal(t, reprocess.StateCompleted, status.State)
	assert.Equal(t, 1, status.ProcessedCount)

	stats, err := svc.NamespaceStats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)
}

type cannedCompleter struct {
	reply string
}

func (c *cannedCompleter) Complete(ctx context.Context, req embeddings.CompletionRequest) (string, error) {
	return c.reply, nil
}

func TestAnswerRequiresCompleter(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Answer(context.Background(), retrieval.AnswerRequest{NamespaceID: "kb", Question: "anything?"})
	assert.ErrorIs(t, err, ErrNoCompleter)
}

func TestAnswerWithCompleter(t *testing.T) {
	svc, _ := newTestService(t, &cannedCompleter{reply: "Stock ships in two days."})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		NamespaceID: "kb",
		DocumentID:  "doc-1",
		Text:        "Orders ship within two days of confirmation.",
	})
	require.NoError(t, err)

	answer, err := svc.Answer(ctx, retrieval.AnswerRequest{NamespaceID: "kb", Question: "How fast do orders ship?"})
	require.NoError(t, err)
	assert.Equal(t, "Stock ships in two days.", answer.Text)
	assert.Contains(t, answer.Sources, "doc-1")
}
