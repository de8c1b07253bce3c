package retrieval_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/embeddings"
	"github.com/stratalabs/ragd/internal/retrieval"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

func newTestEngine(t *testing.T) (*retrieval.Engine, *vectorstore.Registry, *embeddings.Gateway) {
	t.Helper()
	gw, err := embeddings.NewGateway([]embeddings.Provider{embeddings.NewHashProvider(64)}, zap.NewNop())
	require.NoError(t, err)
	reg, err := vectorstore.NewRegistry(gw.Dimension(), zap.NewNop())
	require.NoError(t, err)
	return retrieval.NewEngine(gw, reg, zap.NewNop()), reg, gw
}

func ingest(t *testing.T, reg *vectorstore.Registry, gw *embeddings.Gateway, namespace, docID string, texts []string) {
	t.Helper()
	ctx := context.Background()
	col, err := reg.GetOrCreate(ctx, namespace)
	require.NoError(t, err)
	vectors, err := gw.Embed(ctx, texts)
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx, docID, texts, vectors, vectorstore.ChunkMetadata{}))
}

func TestQueryReturnsRankedResults(t *testing.T) {
	engine, reg, gw := newTestEngine(t)
	ingest(t, reg, gw, "kb1", "doc1", []string{
		"the cat sat on the mat",
		"stock markets closed higher today",
		"a cat chased a mouse",
	})

	resp, err := engine.Query(context.Background(), "kb1", "the cat sat on the mat", 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	// Exact text match ranks first with similarity 1.
	assert.Equal(t, "the cat sat on the mat", resp.Results[0].Text)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)

	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
		assert.Equal(t, i, resp.Results[i].Rank)
	}
	assert.Positive(t, resp.Confidence)
}

func TestQueryUnknownNamespaceIsFatal(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Query(context.Background(), "no_such_kb", "anything", 5, 0)
	require.ErrorIs(t, err, vectorstore.ErrNamespaceNotFound)
}

func TestQueryEmbeddingUnavailableIsFatal(t *testing.T) {
	gw, err := embeddings.NewGateway([]embeddings.Provider{&downProvider{dimension: 8}}, zap.NewNop())
	require.NoError(t, err)
	reg, err := vectorstore.NewRegistry(8, zap.NewNop())
	require.NoError(t, err)
	_, err = reg.Create(context.Background(), "kb1")
	require.NoError(t, err)

	engine := retrieval.NewEngine(gw, reg, zap.NewNop())
	_, err = engine.Query(context.Background(), "kb1", "anything", 5, 0)
	require.ErrorIs(t, err, embeddings.ErrUnavailable)
}

func TestQueryMinScorePostFilter(t *testing.T) {
	engine, reg, gw := newTestEngine(t)
	ingest(t, reg, gw, "kb1", "doc1", []string{"completely unrelated words here"})

	// The best match scores well below 0.9: empty result, not an error.
	resp, err := engine.Query(context.Background(), "kb1", "quantum harmonic oscillator", 5, 0.9)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0.0, resp.Confidence)
}

func TestQueryDefaultsK(t *testing.T) {
	engine, reg, gw := newTestEngine(t)
	texts := make([]string, 8)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i := range texts {
		texts[i] = "filler text number " + words[i]
	}
	ingest(t, reg, gw, "kb1", "doc1", texts)

	resp, err := engine.Query(context.Background(), "kb1", "filler text number alpha", 0, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Results, retrieval.DefaultK)
}

// downProvider always fails.
type downProvider struct{ dimension int }

func (p *downProvider) Name() string { return "down" }

func (p *downProvider) Dimension() int { return p.dimension }

func (p *downProvider) Close() error { return nil }

func (p *downProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func (p *downProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider down")
}

// The confidence formula is deliberately non-standard: rank-weighted mean
// with weights 1/(i+1), then confidence = 2/(1+e^(-4*(raw-0.5))) clamped to
// [0,1]. Pin it down so it cannot drift.
func TestConfidenceFormula(t *testing.T) {
	t.Run("empty set is exactly zero", func(t *testing.T) {
		assert.Equal(t, 0.0, retrieval.Confidence(nil))
		assert.Equal(t, 0.0, retrieval.Confidence([]float64{}))
	})

	t.Run("matches closed form for single score", func(t *testing.T) {
		for _, raw := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
			want := 2.0 / (1.0 + math.Exp(-4.0*(raw-0.5)))
			if want > 1 {
				want = 1
			}
			assert.InDelta(t, want, retrieval.Confidence([]float64{raw}), 1e-12, "raw=%v", raw)
		}
	})

	t.Run("matches closed form for weighted mean", func(t *testing.T) {
		scores := []float64{0.9, 0.6, 0.3}
		raw := (0.9/1 + 0.6/2 + 0.3/3) / (1.0/1 + 1.0/2 + 1.0/3)
		want := 2.0 / (1.0 + math.Exp(-4.0*(raw-0.5)))
		if want > 1 {
			want = 1
		}
		assert.InDelta(t, want, retrieval.Confidence(scores), 1e-12)
	})

	t.Run("raw 0.5 saturates to 1", func(t *testing.T) {
		// 2/(1+e^0) = 1 exactly at raw 0.5; anything above clamps.
		assert.InDelta(t, 1.0, retrieval.Confidence([]float64{0.5}), 1e-12)
		assert.Equal(t, 1.0, retrieval.Confidence([]float64{0.9}))
	})

	t.Run("bounded in unit interval", func(t *testing.T) {
		for _, scores := range [][]float64{{0}, {1}, {0, 0, 0}, {1, 1, 1}, {0.2, 0.8}} {
			c := retrieval.Confidence(scores)
			assert.GreaterOrEqual(t, c, 0.0)
			assert.LessOrEqual(t, c, 1.0)
		}
	})

	t.Run("monotone in top result", func(t *testing.T) {
		prev := -1.0
		for _, top := range []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.45} {
			c := retrieval.Confidence([]float64{top, 0.2, 0.1})
			assert.GreaterOrEqual(t, c, prev, "top=%v", top)
			prev = c
		}
	})
}

func TestBuildContext(t *testing.T) {
	assert.Empty(t, retrieval.BuildContext(nil))

	results := []vectorstore.SearchResult{
		{DocumentID: "doc1", Text: "first chunk", Metadata: vectorstore.ChunkMetadata{Title: "Guide"}},
		{DocumentID: "doc2", Text: "second chunk"},
	}
	block := retrieval.BuildContext(results)
	assert.Contains(t, block, "[Source: Guide]\nfirst chunk")
	assert.Contains(t, block, "[Source: doc2]\nsecond chunk")
	assert.Contains(t, block, "\n\n---\n\n")
}

func TestAnswerUsesCompleter(t *testing.T) {
	engine, reg, gw := newTestEngine(t)
	ingest(t, reg, gw, "kb1", "doc1", []string{"the capital of France is Paris"})

	completer := &scriptedCompleter{reply: "Paris."}
	answer, err := engine.Answer(context.Background(), completer, retrieval.AnswerRequest{
		NamespaceID: "kb1",
		Question:    "the capital of France is Paris",
		K:           3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.Text)
	assert.Equal(t, []string{"doc1"}, answer.Sources)
	assert.Contains(t, completer.lastPrompt, "the capital of France is Paris")
}

type scriptedCompleter struct {
	reply      string
	lastPrompt string
}

func (c *scriptedCompleter) Complete(ctx context.Context, req embeddings.CompletionRequest) (string, error) {
	c.lastPrompt = req.Prompt
	return c.reply, nil
}
