package embeddings

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Gateway adapts chunk batches to provider calls with ordered fallback.
//
// Providers are tried in order; for each text the first provider returning a
// non-empty vector of the right dimension wins. Per-text failures inside an
// otherwise healthy batch are recovered locally with a zero vector so a
// single bad chunk never fails document ingestion. The only fatal condition
// is total unavailability: no provider configured, or (for queries) every
// provider failing.
type Gateway struct {
	providers []Provider
	dimension int
	logger    *zap.Logger
	metrics   *Metrics
}

// NewGateway creates a gateway over an ordered provider list. The first
// provider is primary; its dimension becomes the namespace's fixed
// embedding dimension, and all alternates must match it.
func NewGateway(providers []Provider, logger *zap.Logger) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: provider list is empty", ErrUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dimension := providers[0].Dimension()
	for _, p := range providers[1:] {
		if p.Dimension() != dimension {
			return nil, fmt.Errorf("%w: provider %s dimension %d does not match primary dimension %d",
				ErrInvalidConfig, p.Name(), p.Dimension(), dimension)
		}
	}

	return &Gateway{
		providers: providers,
		dimension: dimension,
		logger:    logger,
		metrics:   NewMetrics(logger),
	}, nil
}

// Dimension returns the fixed embedding dimension of the gateway.
func (g *Gateway) Dimension() int {
	return g.dimension
}

// Embed generates one vector per input text, in input order.
//
// Empty-string entries map to a zero vector instead of failing the batch.
// Texts whose embedding fails on every provider also receive a zero vector
// and are logged; the returned error is always nil for partial failures.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	// Batch the non-empty texts through the primary provider first.
	var pending []int
	var pendingTexts []string
	for i, text := range texts {
		if text == "" {
			vectors[i] = g.zeroVector()
			continue
		}
		pending = append(pending, i)
		pendingTexts = append(pendingTexts, text)
	}
	if len(pending) == 0 {
		return vectors, nil
	}

	primary := g.providers[0]
	batch, err := primary.EmbedDocuments(ctx, pendingTexts)
	if err != nil {
		g.logger.Warn("primary provider batch failed, falling back per text",
			zap.String("provider", primary.Name()),
			zap.Int("batch_size", len(pendingTexts)),
			zap.Error(err),
		)
		batch = nil
	}

	substituted := 0
	for j, i := range pending {
		if batch != nil && j < len(batch) && g.usable(batch[j]) {
			vectors[i] = batch[j]
			continue
		}
		v := g.embedWithFallback(ctx, texts[i], 0)
		if v == nil {
			g.logger.Warn("all providers failed for chunk, substituting zero vector",
				zap.Int("index", i),
				zap.Int("text_length", len(texts[i])),
			)
			v = g.zeroVector()
			substituted++
		}
		vectors[i] = v
	}
	g.metrics.RecordZeroVector(ctx, substituted)

	return vectors, nil
}

// EmbedQuery generates an embedding for a single query text.
//
// Unlike Embed it is strict: a query embedding that fails on every provider
// is fatal for the calling operation, so the error is surfaced instead of a
// zero vector being substituted.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query text cannot be empty", ErrEmptyInput)
	}

	if v := g.embedWithFallback(ctx, text, 0); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: all %d providers failed", ErrUnavailable, len(g.providers))
}

// embedWithFallback tries providers in order starting at the given position
// and returns the first usable vector, or nil when every provider fails.
func (g *Gateway) embedWithFallback(ctx context.Context, text string, from int) []float32 {
	for i := from; i < len(g.providers); i++ {
		p := g.providers[i]
		v, err := p.EmbedQuery(ctx, text)
		if err == nil && g.usable(v) {
			if i > from {
				g.metrics.RecordFallback(ctx, g.providers[from].Name(), p.Name())
			}
			return v
		}
		g.logger.Debug("provider failed for text",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
	}
	return nil
}

// usable reports whether a vector is non-empty and of the fixed dimension.
func (g *Gateway) usable(v []float32) bool {
	return len(v) == g.dimension
}

func (g *Gateway) zeroVector() []float32 {
	return make([]float32, g.dimension)
}

// Close closes all providers.
func (g *Gateway) Close() error {
	var firstErr error
	for _, p := range g.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
