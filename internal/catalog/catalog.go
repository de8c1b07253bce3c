// Package catalog persists document records and chunk snapshots in SQLite.
//
// The catalog is the durable side of the core: vector collections live in
// memory, the catalog remembers which documents exist, their lifecycle
// status, and enough chunk data to rebuild a namespace after restart.
package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors for catalog operations.
var (
	// ErrDocumentNotFound is returned when a document id is unknown.
	ErrDocumentNotFound = errors.New("document not found")
)

// Status is a document's lifecycle state.
type Status string

const (
	// StatusPending marks a document created but not yet processed.
	StatusPending Status = "pending"
	// StatusProcessing marks a document being chunked and embedded.
	StatusProcessing Status = "processing"
	// StatusCompleted marks a fully ingested document.
	StatusCompleted Status = "completed"
	// StatusFailed marks a document whose processing failed.
	StatusFailed Status = "failed"
	// StatusOrphaned marks a document whose namespace collection was
	// deleted out from under it; its content is no longer retrievable.
	StatusOrphaned Status = "orphaned"
)

// Document is a persisted document record.
type Document struct {
	ID          string    `json:"id"`
	NamespaceID string    `json:"namespace_id"`
	Title       string    `json:"title"`
	SourcePath  string    `json:"source_path"`
	Status      Status    `json:"status"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentChunks is one document's persisted chunk snapshot.
type DocumentChunks struct {
	DocumentID string
	Texts      []string
	Vectors    [][]float32
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    namespace_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    source_path TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_namespace ON documents(namespace_id);

CREATE TABLE IF NOT EXISTS chunks (
    document_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    text TEXT NOT NULL,
    vector BLOB NOT NULL,
    PRIMARY KEY (document_id, idx),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);
`

// Catalog wraps the SQLite connection.
type Catalog struct {
	conn *sql.DB
}

// New opens (creating if needed) the catalog database at path and runs
// migrations. Use ":memory:" for an ephemeral catalog.
func New(path string) (*Catalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Catalog{conn: conn}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// UpsertDocument inserts or replaces a document record.
func (c *Catalog) UpsertDocument(ctx context.Context, doc Document) error {
	now := time.Now().Unix()
	created := now
	if !doc.CreatedAt.IsZero() {
		created = doc.CreatedAt.Unix()
	}

	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO documents (id, namespace_id, title, source_path, status, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    namespace_id = excluded.namespace_id,
		    title = excluded.title,
		    source_path = excluded.source_path,
		    status = excluded.status,
		    chunk_count = excluded.chunk_count,
		    updated_at = excluded.updated_at`,
		doc.ID, doc.NamespaceID, doc.Title, doc.SourcePath, string(doc.Status), doc.ChunkCount, created, now)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

// SetStatus updates a document's lifecycle status.
func (c *Catalog) SetStatus(ctx context.Context, documentID string, status Status) error {
	res, err := c.conn.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().Unix(), documentID)
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", documentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	return nil
}

// Complete marks a document completed with its final chunk count.
func (c *Catalog) Complete(ctx context.Context, documentID string, chunkCount int) error {
	res, err := c.conn.ExecContext(ctx,
		`UPDATE documents SET status = ?, chunk_count = ?, updated_at = ? WHERE id = ?`,
		string(StatusCompleted), chunkCount, time.Now().Unix(), documentID)
	if err != nil {
		return fmt.Errorf("completing document %s: %w", documentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	return nil
}

// GetDocument fetches one document record.
func (c *Catalog) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	row := c.conn.QueryRowContext(ctx, `
		SELECT id, namespace_id, title, source_path, status, chunk_count, created_at, updated_at
		FROM documents WHERE id = ?`, documentID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", documentID, err)
	}
	return doc, nil
}

// ListByNamespace returns all documents of a namespace, oldest first.
func (c *Catalog) ListByNamespace(ctx context.Context, namespaceID string) ([]Document, error) {
	rows, err := c.conn.QueryContext(ctx, `
		SELECT id, namespace_id, title, source_path, status, chunk_count, created_at, updated_at
		FROM documents WHERE namespace_id = ? ORDER BY created_at, id`, namespaceID)
	if err != nil {
		return nil, fmt.Errorf("listing namespace %s: %w", namespaceID, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, via cascade, its chunk snapshot.
func (c *Catalog) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := c.conn.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	return nil
}

// DeleteNamespace removes every document record of a namespace and returns
// the count removed.
func (c *Catalog) DeleteNamespace(ctx context.Context, namespaceID string) (int, error) {
	res, err := c.conn.ExecContext(ctx, `DELETE FROM documents WHERE namespace_id = ?`, namespaceID)
	if err != nil {
		return 0, fmt.Errorf("deleting namespace %s: %w", namespaceID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MarkNamespaceOrphaned flags every document of a namespace as orphaned.
// Used when a collection is destroyed but document records are kept: a
// record must never claim Completed while its content is unretrievable.
func (c *Catalog) MarkNamespaceOrphaned(ctx context.Context, namespaceID string) (int, error) {
	res, err := c.conn.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE namespace_id = ?`,
		string(StatusOrphaned), time.Now().Unix(), namespaceID)
	if err != nil {
		return 0, fmt.Errorf("orphaning namespace %s: %w", namespaceID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ReplaceChunks atomically replaces a document's chunk snapshot.
func (c *Catalog) ReplaceChunks(ctx context.Context, documentID string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("chunk snapshot for %s: %d texts, %d vectors", documentID, len(texts), len(vectors))
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clearing chunks of %s: %w", documentID, err)
	}

	for i, text := range texts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (document_id, idx, text, vector) VALUES (?, ?, ?, ?)`,
			documentID, i, text, serializeVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("inserting chunk %d of %s: %w", i, documentID, err)
		}
	}

	return tx.Commit()
}

// LoadNamespaceChunks returns every document's chunk snapshot for a
// namespace, in document insertion order, for collection rebuilds.
func (c *Catalog) LoadNamespaceChunks(ctx context.Context, namespaceID string) ([]DocumentChunks, error) {
	docs, err := c.ListByNamespace(ctx, namespaceID)
	if err != nil {
		return nil, err
	}

	var out []DocumentChunks
	for _, doc := range docs {
		rows, err := c.conn.QueryContext(ctx,
			`SELECT text, vector FROM chunks WHERE document_id = ? ORDER BY idx`, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("loading chunks of %s: %w", doc.ID, err)
		}

		dc := DocumentChunks{DocumentID: doc.ID}
		for rows.Next() {
			var text string
			var blob []byte
			if err := rows.Scan(&text, &blob); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning chunk of %s: %w", doc.ID, err)
			}
			dc.Texts = append(dc.Texts, text)
			dc.Vectors = append(dc.Vectors, deserializeVector(blob))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		if len(dc.Texts) > 0 {
			out = append(out, dc)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var status string
	var created, updated int64
	err := row.Scan(&doc.ID, &doc.NamespaceID, &doc.Title, &doc.SourcePath, &status, &doc.ChunkCount, &created, &updated)
	if err != nil {
		return nil, err
	}
	doc.Status = Status(status)
	doc.CreatedAt = time.Unix(created, 0)
	doc.UpdatedAt = time.Unix(updated, 0)
	return &doc, nil
}

// serializeVector converts a float32 slice to little-endian bytes.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts little-endian bytes back to a float32 slice.
func deserializeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector
}
