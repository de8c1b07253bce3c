package reprocess

// Stage is a phase of one document's reprocessing pipeline. A document only
// advances to the next stage after its predecessor fully completes.
type Stage string

const (
	// StageExtracting reads the document's source content.
	StageExtracting Stage = "extracting_content"
	// StageChunking splits the cached content into chunks.
	StageChunking Stage = "chunking"
	// StageEmbedding generates vectors for the chunks.
	StageEmbedding Stage = "embedding"
	// StageStoring writes chunks and vectors into the collection.
	StageStoring Stage = "storing"
)

// Floor returns the progress value a document holds while in the stage.
func (s Stage) Floor() int {
	switch s {
	case StageExtracting:
		return 0
	case StageChunking:
		return 25
	case StageEmbedding:
		return 50
	case StageStoring:
		return 75
	default:
		return 0
	}
}

// DocState is a document's position in the reprocessing state machine:
// Ready -> Reprocessing -> Completed | Failed.
type DocState string

const (
	// StateReady marks a document queued but not yet started.
	StateReady DocState = "ready"
	// StateReprocessing marks a document moving through the stages.
	StateReprocessing DocState = "reprocessing"
	// StateCompleted marks a document fully re-ingested.
	StateCompleted DocState = "completed"
	// StateFailed marks a document that could not be reprocessed.
	StateFailed DocState = "failed"
)

// terminal reports whether the state is an end state.
func (s DocState) terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// DocumentStatus is the state machine value for one document. It is
// updated as a whole under the run lock, never mutated through shared
// references, so the polling read path sees consistent snapshots.
type DocumentStatus struct {
	DocumentID string   `json:"document_id"`
	State      DocState `json:"state"`
	Stage      Stage    `json:"stage,omitempty"`
	Progress   int      `json:"progress"`
	Error      string   `json:"error,omitempty"`
}

// NamespaceStatus is the aggregate roll-up across a namespace's documents.
type NamespaceStatus struct {
	NamespaceID string `json:"namespace_id"`
	JobID       string `json:"job_id"`

	// State is Completed iff all documents completed, Failed iff all
	// failed, Reprocessing otherwise.
	State DocState `json:"state"`

	// Progress is finished/total*100 plus the in-progress share scaled by
	// the mean progress of in-progress documents.
	Progress float64 `json:"progress"`

	// Finished reports that every document reached a terminal state, even
	// when a mixed outcome keeps State at Reprocessing.
	Finished bool `json:"finished"`

	ProcessedCount int `json:"processed_count"`
	FailedCount    int `json:"failed_count"`

	Documents []DocumentStatus `json:"per_document_status"`
}

// aggregate rolls document statuses up into the namespace view.
func aggregate(namespaceID, jobID string, docs []DocumentStatus, finished bool) *NamespaceStatus {
	status := &NamespaceStatus{
		NamespaceID: namespaceID,
		JobID:       jobID,
		Finished:    finished,
		Documents:   docs,
	}

	if len(docs) == 0 {
		status.State = StateCompleted
		status.Progress = 100
		return status
	}

	var inProgress, progressSum int
	for _, d := range docs {
		switch d.State {
		case StateCompleted:
			status.ProcessedCount++
		case StateFailed:
			status.FailedCount++
		default:
			inProgress++
			progressSum += d.Progress
		}
	}

	total := len(docs)
	finishedDocs := status.ProcessedCount + status.FailedCount

	switch {
	case status.ProcessedCount == total:
		status.State = StateCompleted
	case status.FailedCount == total:
		status.State = StateFailed
	default:
		status.State = StateReprocessing
	}

	status.Progress = float64(finishedDocs) / float64(total) * 100
	if inProgress > 0 {
		mean := float64(progressSum) / float64(inProgress)
		status.Progress += float64(inProgress) / float64(total) * mean
	}

	return status
}
