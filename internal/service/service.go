// Package service is the application facade. It wires the catalog, the
// vector store registry, the embedding gateway, the retrieval engine, and
// the reprocessing coordinator into the operations exposed to callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/catalog"
	"github.com/stratalabs/ragd/internal/chunker"
	"github.com/stratalabs/ragd/internal/embeddings"
	"github.com/stratalabs/ragd/internal/extraction"
	"github.com/stratalabs/ragd/internal/reprocess"
	"github.com/stratalabs/ragd/internal/retrieval"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

var (
	// ErrInvalidRequest indicates a malformed ingest or query request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoCompleter is returned by Answer when no completion provider is
	// configured.
	ErrNoCompleter = errors.New("no completion provider configured")
)

var tracer = otel.Tracer("ragd.service")

// Service coordinates the ingestion and retrieval pipeline.
type Service struct {
	catalog     *catalog.Catalog
	registry    *vectorstore.Registry
	gateway     *embeddings.Gateway
	extractor   extraction.Extractor
	engine      *retrieval.Engine
	coordinator *reprocess.Coordinator
	completer   embeddings.Completer
	logger      *zap.Logger
}

// New assembles a service over the shared components. completer may be nil;
// Answer then returns ErrNoCompleter.
func New(cat *catalog.Catalog, registry *vectorstore.Registry, gateway *embeddings.Gateway, extractor extraction.Extractor, completer embeddings.Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = extraction.NewFileExtractor()
	}
	return &Service{
		catalog:     cat,
		registry:    registry,
		gateway:     gateway,
		extractor:   extractor,
		engine:      retrieval.NewEngine(gateway, registry, logger),
		coordinator: reprocess.NewCoordinator(cat, registry, gateway, extractor, logger),
		completer:   completer,
		logger:      logger.Named("service"),
	}
}

// CreateNamespace provisions a namespace. Creating an existing namespace is
// a no-op success.
func (s *Service) CreateNamespace(ctx context.Context, namespaceID string) error {
	if namespaceID == "" {
		return fmt.Errorf("%w: namespace id is required", ErrInvalidRequest)
	}
	_, err := s.registry.Create(ctx, namespaceID)
	return err
}

// DeleteNamespace drops the namespace's vectors and marks its catalog
// documents orphaned. The catalog rows survive so a later audit can see
// what was dropped.
func (s *Service) DeleteNamespace(ctx context.Context, namespaceID string) error {
	ctx, span := tracer.Start(ctx, "service.delete_namespace",
		trace.WithAttributes(attribute.String("namespace.id", namespaceID)))
	defer span.End()

	if err := s.registry.Delete(ctx, namespaceID); err != nil {
		return err
	}
	orphaned, err := s.catalog.MarkNamespaceOrphaned(ctx, namespaceID)
	if err != nil {
		return fmt.Errorf("orphaning documents: %w", err)
	}
	s.logger.Info("namespace deleted",
		zap.String("namespace_id", namespaceID),
		zap.Int("orphaned_documents", orphaned))
	return nil
}

// ListNamespaces returns all namespace ids, sorted.
func (s *Service) ListNamespaces() []string {
	return s.registry.List()
}

// NamespaceStats reports chunk count, document count, and average chunk
// size for the namespace.
func (s *Service) NamespaceStats(ctx context.Context, namespaceID string) (*vectorstore.Stats, error) {
	collection, err := s.registry.Get(ctx, namespaceID)
	if err != nil {
		return nil, err
	}
	stats := collection.Stats()
	return &stats, nil
}

// Query embeds the text and returns ranked results with an aggregate
// confidence score.
func (s *Service) Query(ctx context.Context, namespaceID, text string, k int, minScore float64) (*retrieval.Response, error) {
	return s.engine.Query(ctx, namespaceID, text, k, minScore)
}

// Answer runs retrieve-then-generate over the namespace.
func (s *Service) Answer(ctx context.Context, req retrieval.AnswerRequest) (*retrieval.Answer, error) {
	if s.completer == nil {
		return nil, ErrNoCompleter
	}
	return s.engine.Answer(ctx, s.completer, req)
}

// Reprocess starts a background re-ingestion of the namespace with new
// chunking options.
func (s *Service) Reprocess(ctx context.Context, namespaceID string, opts chunker.Options) (*reprocess.Job, error) {
	return s.coordinator.Reprocess(ctx, namespaceID, opts)
}

// ReprocessingStatus reports the namespace's most recent reprocessing job.
func (s *Service) ReprocessingStatus(namespaceID string) (*reprocess.NamespaceStatus, error) {
	return s.coordinator.Status(namespaceID)
}

// LoadNamespace rebuilds a namespace's collection from the chunk snapshots
// persisted in the catalog, without re-extracting or re-embedding anything.
// Orphaned documents are skipped.
func (s *Service) LoadNamespace(ctx context.Context, namespaceID string) (int, error) {
	ctx, span := tracer.Start(ctx, "service.load_namespace",
		trace.WithAttributes(attribute.String("namespace.id", namespaceID)))
	defer span.End()

	docs, err := s.catalog.ListByNamespace(ctx, namespaceID)
	if err != nil {
		return 0, fmt.Errorf("listing documents: %w", err)
	}
	byID := make(map[string]catalog.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	stored, err := s.catalog.LoadNamespaceChunks(ctx, namespaceID)
	if err != nil {
		return 0, fmt.Errorf("loading chunk snapshots: %w", err)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].DocumentID < stored[j].DocumentID })

	collection, err := s.registry.GetOrCreate(ctx, namespaceID)
	if err != nil {
		return 0, err
	}

	var restored int
	for _, dc := range stored {
		doc, ok := byID[dc.DocumentID]
		if !ok || doc.Status == catalog.StatusOrphaned {
			continue
		}
		collection.DeleteDocument(ctx, dc.DocumentID)
		meta := vectorstore.ChunkMetadata{Title: doc.Title, SourcePath: doc.SourcePath}
		if err := collection.Add(ctx, dc.DocumentID, dc.Texts, dc.Vectors, meta); err != nil {
			return restored, fmt.Errorf("restoring document %s: %w", dc.DocumentID, err)
		}
		restored++
	}

	s.logger.Info("namespace restored",
		zap.String("namespace_id", namespaceID),
		zap.Int("documents", restored))
	return restored, nil
}
