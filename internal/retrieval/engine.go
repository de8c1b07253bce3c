// Package retrieval answers similarity queries with ranked,
// confidence-scored results.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/embeddings"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

var tracer = otel.Tracer("ragd.retrieval")

// DefaultK is the result count used when the caller passes k <= 0.
const DefaultK = 5

// Response is the outcome of one retrieval query.
type Response struct {
	// Results are the ranked matches, best first.
	Results []vectorstore.SearchResult `json:"results"`

	// Confidence is the aggregate confidence score in [0, 1].
	Confidence float64 `json:"confidence_score"`
}

// Engine embeds query text, searches the namespace's collection, and ranks
// and scores the results.
type Engine struct {
	gateway  *embeddings.Gateway
	registry *vectorstore.Registry
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(gateway *embeddings.Gateway, registry *vectorstore.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		gateway:  gateway,
		registry: registry,
		logger:   logger,
	}
}

// Query runs a similarity query against one namespace.
//
// minScore is a post-filter: results below it are dropped after ranking, so
// fewer than k results may come back, and an empty result set is not an
// error. An unknown namespace is fatal (vectorstore.ErrNamespaceNotFound),
// as is embedding unavailability (embeddings.ErrUnavailable).
func (e *Engine) Query(ctx context.Context, namespaceID, text string, k int, minScore float64) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Engine.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("namespace", namespaceID),
		attribute.Int("k", k),
		attribute.Float64("min_score", minScore),
	)

	if k <= 0 {
		k = DefaultK
	}

	queryVector, err := e.gateway.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	collection, err := e.registry.Get(ctx, namespaceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results, err := collection.Search(ctx, queryVector, k, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching namespace %s: %w", namespaceID, err)
	}

	// Drop results below minScore after ranking. Ranks stay dense from 0;
	// the cutoff only ever trims the tail because results are sorted.
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	results = filtered
	for i := range results {
		results[i].Rank = i
	}

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}

	resp := &Response{
		Results:    results,
		Confidence: Confidence(scores),
	}

	span.SetAttributes(
		attribute.Int("results_count", len(results)),
		attribute.Float64("confidence", resp.Confidence),
	)
	span.SetStatus(codes.Ok, "success")

	e.logger.Debug("query answered",
		zap.String("namespace", namespaceID),
		zap.Int("results", len(results)),
		zap.Float64("confidence", resp.Confidence),
	)

	return resp, nil
}

// Confidence computes the aggregate confidence for ranked similarity
// scores: the rank-weighted mean with weight 1/(i+1) for the i-th ranked
// result, reshaped through the logistic 2/(1+e^(-4*(raw-0.5))) and clamped
// to [0, 1]. The reshaping stretches mid-range raw scores toward the
// extremes.
//
// An empty score list short-circuits to exactly 0.0; the formula is
// undefined on an empty set.
func Confidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var weighted, weights float64
	for i, s := range scores {
		w := 1.0 / float64(i+1)
		weighted += s * w
		weights += w
	}
	raw := weighted / weights

	confidence := 2.0 / (1.0 + math.Exp(-4.0*(raw-0.5)))
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// BuildContext assembles the retrieved chunks into a context block for the
// external generation call, best match first.
func BuildContext(results []vectorstore.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		source := r.DocumentID
		if r.Metadata.Title != "" {
			source = r.Metadata.Title
		}
		fmt.Fprintf(&b, "[Source: %s]\n%s", source, r.Text)
	}
	return b.String()
}
