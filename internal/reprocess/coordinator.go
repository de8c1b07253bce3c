// Package reprocess re-runs the ingestion pipeline over every document of a
// namespace with new chunking options. Content for all documents is extracted
// and cached before the namespace's vectors are cleared, so a failed
// extraction never destroys data that cannot be rebuilt.
package reprocess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/catalog"
	"github.com/stratalabs/ragd/internal/chunker"
	"github.com/stratalabs/ragd/internal/embeddings"
	"github.com/stratalabs/ragd/internal/extraction"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

var (
	// ErrAlreadyRunning is returned when a namespace already has an
	// unfinished reprocessing job.
	ErrAlreadyRunning = errors.New("reprocessing already running for namespace")
	// ErrNoJob is returned by Status when the namespace has never been
	// reprocessed.
	ErrNoJob = errors.New("no reprocessing job for namespace")
)

var tracer = otel.Tracer("ragd.reprocess")

// Job identifies one background reprocessing run. Done is closed when every
// document has reached a terminal state.
type Job struct {
	ID          string
	NamespaceID string
	StartedAt   time.Time
	Done        <-chan struct{}
}

// run is the mutable record behind a Job.
type run struct {
	jobID     string
	startedAt time.Time
	done      chan struct{}

	mu   sync.RWMutex
	docs []DocumentStatus
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// set replaces the status of the document at index i.
func (r *run) set(i int, status DocumentStatus) {
	r.mu.Lock()
	r.docs[i] = status
	r.mu.Unlock()
}

func (r *run) snapshot() []DocumentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DocumentStatus, len(r.docs))
	copy(out, r.docs)
	return out
}

// Coordinator schedules and tracks reprocessing jobs, one at a time per
// namespace. Queries against the namespace keep working while a job runs;
// the collection is only locked exclusively during the clear-and-reinsert
// window.
type Coordinator struct {
	catalog   *catalog.Catalog
	registry  *vectorstore.Registry
	gateway   *embeddings.Gateway
	extractor extraction.Extractor
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewCoordinator creates a coordinator over the shared pipeline components.
func NewCoordinator(cat *catalog.Catalog, registry *vectorstore.Registry, gateway *embeddings.Gateway, extractor extraction.Extractor, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		catalog:   cat,
		registry:  registry,
		gateway:   gateway,
		extractor: extractor,
		logger:    logger.Named("reprocess"),
		runs:      make(map[string]*run),
	}
}

// Reprocess starts a background job that re-chunks, re-embeds, and re-stores
// every document in the namespace using opts. It validates opts and resolves
// the namespace before any work begins, then returns immediately; callers
// poll Status for resolution. Jobs are not cancellable once started.
func (c *Coordinator) Reprocess(ctx context.Context, namespaceID string, opts chunker.Options) (*Job, error) {
	ctx, span := tracer.Start(ctx, "reprocess.start",
		trace.WithAttributes(attribute.String("namespace.id", namespaceID)))
	defer span.End()

	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("chunking options: %w", err)
	}

	collection, err := c.registry.Get(ctx, namespaceID)
	if err != nil {
		return nil, err
	}

	all, err := c.catalog.ListByNamespace(ctx, namespaceID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	// Orphaned rows belong to an earlier incarnation of the namespace.
	docs := make([]catalog.Document, 0, len(all))
	for _, d := range all {
		if d.Status != catalog.StatusOrphaned {
			docs = append(docs, d)
		}
	}

	c.mu.Lock()
	if existing, ok := c.runs[namespaceID]; ok && !existing.finished() {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	r := &run{
		jobID:     uuid.NewString(),
		startedAt: time.Now(),
		done:      make(chan struct{}),
		docs:      make([]DocumentStatus, len(docs)),
	}
	for i, d := range docs {
		r.docs[i] = DocumentStatus{DocumentID: d.ID, State: StateReady}
	}
	c.runs[namespaceID] = r
	c.mu.Unlock()

	c.logger.Info("reprocessing started",
		zap.String("namespace_id", namespaceID),
		zap.String("job_id", r.jobID),
		zap.Int("documents", len(docs)))

	go c.execute(collection, namespaceID, docs, opts, r)

	return &Job{ID: r.jobID, NamespaceID: namespaceID, StartedAt: r.startedAt, Done: r.done}, nil
}

// Status returns the aggregate state of the namespace's most recent job.
func (c *Coordinator) Status(namespaceID string) (*NamespaceStatus, error) {
	c.mu.Lock()
	r, ok := c.runs[namespaceID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoJob, namespaceID)
	}
	return aggregate(namespaceID, r.jobID, r.snapshot(), r.finished()), nil
}

// execute drives the job to completion. It deliberately runs on a background
// context so an expired caller context cannot abandon a half-cleared
// namespace.
func (c *Coordinator) execute(collection *vectorstore.Collection, namespaceID string, docs []catalog.Document, opts chunker.Options, r *run) {
	defer close(r.done)

	ctx := context.Background()

	// Phase one: extract and cache content for every document before
	// touching stored vectors. Documents that yield no content fail here
	// and are excluded from the rebuild.
	contents := make(map[string]string, len(docs))
	for i, doc := range docs {
		r.set(i, DocumentStatus{DocumentID: doc.ID, State: StateReprocessing, Stage: StageExtracting, Progress: StageExtracting.Floor()})

		text, err := c.content(ctx, doc)
		if err != nil {
			c.failDocument(ctx, r, i, doc.ID, StageExtracting, err)
			continue
		}
		contents[doc.ID] = text
	}

	// Phase two: every surviving document has cached content, so the old
	// vectors can be dropped. Clear holds the collection's exclusive lock
	// only for this call.
	collection.Clear(ctx)

	// Phase three: rebuild from the cache.
	for i, doc := range docs {
		text, ok := contents[doc.ID]
		if !ok {
			continue
		}
		c.rebuild(ctx, collection, r, i, doc, text, opts)
	}

	status := aggregate(namespaceID, r.jobID, r.snapshot(), true)
	c.logger.Info("reprocessing finished",
		zap.String("namespace_id", namespaceID),
		zap.String("job_id", r.jobID),
		zap.Int("processed", status.ProcessedCount),
		zap.Int("failed", status.FailedCount))
}

// rebuild runs chunk, embed, and store for one document.
func (c *Coordinator) rebuild(ctx context.Context, collection *vectorstore.Collection, r *run, i int, doc catalog.Document, text string, opts chunker.Options) {
	r.set(i, DocumentStatus{DocumentID: doc.ID, State: StateReprocessing, Stage: StageChunking, Progress: StageChunking.Floor()})
	chunks, err := chunker.Chunk(text, opts)
	if err != nil {
		c.failDocument(ctx, r, i, doc.ID, StageChunking, err)
		return
	}
	if len(chunks) == 0 {
		c.failDocument(ctx, r, i, doc.ID, StageChunking, errors.New("chunking produced no chunks"))
		return
	}

	r.set(i, DocumentStatus{DocumentID: doc.ID, State: StateReprocessing, Stage: StageEmbedding, Progress: StageEmbedding.Floor()})
	vectors, err := c.gateway.Embed(ctx, chunks)
	if err != nil {
		c.failDocument(ctx, r, i, doc.ID, StageEmbedding, err)
		return
	}

	r.set(i, DocumentStatus{DocumentID: doc.ID, State: StateReprocessing, Stage: StageStoring, Progress: StageStoring.Floor()})
	meta := vectorstore.ChunkMetadata{Title: doc.Title, SourcePath: doc.SourcePath, Strategy: string(opts.Strategy)}
	if err := collection.Add(ctx, doc.ID, chunks, vectors, meta); err != nil {
		c.failDocument(ctx, r, i, doc.ID, StageStoring, err)
		return
	}
	if err := c.catalog.ReplaceChunks(ctx, doc.ID, chunks, vectors); err != nil {
		c.failDocument(ctx, r, i, doc.ID, StageStoring, err)
		return
	}
	if err := c.catalog.Complete(ctx, doc.ID, len(chunks)); err != nil {
		c.failDocument(ctx, r, i, doc.ID, StageStoring, err)
		return
	}

	r.set(i, DocumentStatus{DocumentID: doc.ID, State: StateCompleted, Progress: 100})
}

// content resolves the document's current text. Documents ingested from a
// file are re-extracted from disk; documents ingested as raw text are
// reconstructed from their stored chunk snapshot.
func (c *Coordinator) content(ctx context.Context, doc catalog.Document) (string, error) {
	if doc.SourcePath != "" {
		text, _, err := c.extractor.Extract(ctx, doc.SourcePath)
		if err != nil {
			return "", err
		}
		return text, nil
	}

	stored, err := c.catalog.LoadNamespaceChunks(ctx, doc.NamespaceID)
	if err != nil {
		return "", err
	}
	for _, dc := range stored {
		if dc.DocumentID == doc.ID && len(dc.Texts) > 0 {
			return strings.Join(dc.Texts, " "), nil
		}
	}
	return "", extraction.ErrNoContent
}

func (c *Coordinator) failDocument(ctx context.Context, r *run, i int, documentID string, stage Stage, cause error) {
	r.set(i, DocumentStatus{DocumentID: documentID, State: StateFailed, Stage: stage, Progress: stage.Floor(), Error: cause.Error()})
	if err := c.catalog.SetStatus(ctx, documentID, catalog.StatusFailed); err != nil {
		c.logger.Warn("recording failure status", zap.String("document_id", documentID), zap.Error(err))
	}
	c.logger.Warn("document reprocessing failed",
		zap.String("document_id", documentID),
		zap.String("stage", string(stage)),
		zap.Error(cause))
}
