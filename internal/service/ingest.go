package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/catalog"
	"github.com/stratalabs/ragd/internal/chunker"
	"github.com/stratalabs/ragd/internal/extraction"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

// IngestRequest describes one document to ingest. Exactly one of Text or
// SourcePath must be set.
type IngestRequest struct {
	NamespaceID string
	DocumentID  string
	Title       string
	Text        string
	SourcePath  string
	Chunking    chunker.Options
}

// IngestResult summarizes a completed ingestion.
type IngestResult struct {
	DocumentID          string `json:"document_id"`
	ChunksCreated       int    `json:"chunks_created"`
	EmbeddingsGenerated int    `json:"embeddings_generated"`
}

// Ingest runs the full pipeline for one document: extract, chunk, embed,
// store, and record in the catalog. Re-ingesting an existing document id
// replaces its chunks. Embedding degradation never fails an ingest; chunks
// whose embedding could not be generated are stored with zero vectors and
// excluded from EmbeddingsGenerated.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "service.ingest",
		trace.WithAttributes(attribute.String("namespace.id", req.NamespaceID)))
	defer span.End()

	if err := validateIngest(req); err != nil {
		return nil, err
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}
	req.Chunking.ApplyDefaults()
	if err := req.Chunking.Validate(); err != nil {
		return nil, err
	}

	collection, err := s.registry.GetOrCreate(ctx, req.NamespaceID)
	if err != nil {
		return nil, err
	}

	doc := catalog.Document{
		ID:          req.DocumentID,
		NamespaceID: req.NamespaceID,
		Title:       req.Title,
		SourcePath:  req.SourcePath,
		Status:      catalog.StatusPending,
		CreatedAt:   time.Now(),
	}
	if doc.Title == "" && req.SourcePath != "" {
		doc.Title = filepath.Base(req.SourcePath)
	}
	if err := s.catalog.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("registering document: %w", err)
	}
	if err := s.catalog.SetStatus(ctx, doc.ID, catalog.StatusProcessing); err != nil {
		return nil, fmt.Errorf("updating status: %w", err)
	}

	result, err := s.ingest(ctx, collection, doc, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if statusErr := s.catalog.SetStatus(ctx, doc.ID, catalog.StatusFailed); statusErr != nil {
			s.logger.Warn("recording failure status", zap.String("document_id", doc.ID), zap.Error(statusErr))
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) ingest(ctx context.Context, collection *vectorstore.Collection, doc catalog.Document, req IngestRequest) (*IngestResult, error) {
	text := req.Text
	if req.SourcePath != "" {
		extracted, _, err := s.extractor.Extract(ctx, req.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", req.SourcePath, err)
		}
		text = extracted
	}

	chunks, err := chunker.Chunk(text, req.Chunking)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document has no content", extraction.ErrNoContent)
	}

	vectors, err := s.gateway.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	collection.DeleteDocument(ctx, doc.ID)
	meta := vectorstore.ChunkMetadata{
		Title:      doc.Title,
		SourcePath: doc.SourcePath,
		Strategy:   string(req.Chunking.Strategy),
	}
	if err := collection.Add(ctx, doc.ID, chunks, vectors, meta); err != nil {
		return nil, fmt.Errorf("storing chunks: %w", err)
	}
	if err := s.catalog.ReplaceChunks(ctx, doc.ID, chunks, vectors); err != nil {
		return nil, fmt.Errorf("persisting chunks: %w", err)
	}
	if err := s.catalog.Complete(ctx, doc.ID, len(chunks)); err != nil {
		return nil, fmt.Errorf("completing document: %w", err)
	}

	embedded := 0
	for _, v := range vectors {
		if !isZero(v) {
			embedded++
		}
	}

	s.logger.Info("document ingested",
		zap.String("namespace_id", req.NamespaceID),
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedded", embedded))

	return &IngestResult{
		DocumentID:          doc.ID,
		ChunksCreated:       len(chunks),
		EmbeddingsGenerated: embedded,
	}, nil
}

func validateIngest(req IngestRequest) error {
	if req.NamespaceID == "" {
		return fmt.Errorf("%w: namespace id is required", ErrInvalidRequest)
	}
	if req.Text == "" && req.SourcePath == "" {
		return fmt.Errorf("%w: either text or source path is required", ErrInvalidRequest)
	}
	if req.Text != "" && req.SourcePath != "" {
		return fmt.Errorf("%w: text and source path are mutually exclusive", ErrInvalidRequest)
	}
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
