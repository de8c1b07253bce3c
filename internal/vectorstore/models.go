package vectorstore

import "time"

// ChunkMetadata carries the optional descriptive fields attached to every
// chunk of a document. It replaces ad hoc metadata maps with explicit
// tagged fields.
type ChunkMetadata struct {
	// Title is the owning document's title.
	Title string `json:"title,omitempty"`

	// SourcePath is the file the document was extracted from.
	SourcePath string `json:"source_path,omitempty"`

	// Strategy names the chunking strategy that produced the chunk.
	Strategy string `json:"strategy,omitempty"`
}

// ChunkRecord is a stored (chunk, vector, metadata) triple.
//
// Records are immutable once inserted; reprocessing replaces all records of
// a document atomically rather than mutating them in place.
type ChunkRecord struct {
	// ID is unique within one collection only, assigned deterministically
	// as "{document_id}_chunk_{index}".
	ID string `json:"id"`

	// DocumentID is the owning document.
	DocumentID string `json:"document_id"`

	// Index is the 0-based, dense within-document ordering.
	Index int `json:"index"`

	// Text is the chunk content.
	Text string `json:"text"`

	// CharLength is the length of Text in bytes.
	CharLength int `json:"char_length"`

	// Embedding is the chunk's vector, always of the collection's fixed
	// dimension. Zero vectors from embedding fallback are valid entries.
	Embedding []float32 `json:"-"`

	// CreatedAt is the insertion time.
	CreatedAt time.Time `json:"created_at"`

	// Metadata holds the chunk's descriptive fields.
	Metadata ChunkMetadata `json:"metadata"`
}

// SearchResult is an ephemeral per-query result. Never persisted.
type SearchResult struct {
	// ChunkID is the matched chunk's collection-scoped id.
	ChunkID string `json:"chunk_id"`

	// DocumentID is the matched chunk's owning document.
	DocumentID string `json:"document_id"`

	// ChunkIndex is the chunk's within-document index.
	ChunkIndex int `json:"chunk_index"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Score is the cosine similarity clamped to [0, 1].
	Score float64 `json:"score"`

	// Rank is the 0-based position in the ranked result list.
	Rank int `json:"rank"`

	// Metadata holds the chunk's descriptive fields.
	Metadata ChunkMetadata `json:"metadata"`
}

// Stats summarizes a collection's contents.
type Stats struct {
	// ChunkCount is the number of stored chunks.
	ChunkCount int `json:"chunk_count"`

	// DocumentCount is the number of distinct document ids, not the
	// number of Add calls.
	DocumentCount int `json:"document_count"`

	// AvgChunkSize is the mean chunk character length.
	AvgChunkSize float64 `json:"avg_chunk_size"`
}

// Filter restricts the candidate set of a search before top-k selection.
// Zero-value fields do not filter.
type Filter struct {
	// DocumentID restricts candidates to one document.
	DocumentID string

	// Predicate restricts candidates by metadata. Nil matches everything.
	Predicate func(ChunkMetadata) bool
}

// matches reports whether a record passes the filter.
func (f *Filter) matches(r *ChunkRecord) bool {
	if f == nil {
		return true
	}
	if f.DocumentID != "" && r.DocumentID != f.DocumentID {
		return false
	}
	if f.Predicate != nil && !f.Predicate(r.Metadata) {
		return false
	}
	return true
}
