package workflows

type DocumentIngestInput struct {
	DocumentID string        `json:"document_id"`
	Filename   string        `json:"filename"`
	Path       string        `json:"path"`
	Resume     *IngestResume `json:"resume,omitempty"`
}

// IngestResume carries a prepared document into the next run after
// continue-as-new.
type IngestResume struct {
	RawFormat   string `json:"raw_format"`
	TotalChunks int    `json:"total_chunks"`
	SpillDir    string `json:"spill_dir"`
	NextOrdinal int    `json:"next_ordinal"`
}

// DocumentIngestProgress is returned by the GetProgress query and as the
// workflow result. LastOrdinal is the highest ordinal written, -1 if none.
type DocumentIngestProgress struct {
	DocumentID    string            `json:"document_id"`
	Filename      string            `json:"filename"`
	RawFormat     string            `json:"raw_format,omitempty"`
	Status        string            `json:"status"`
	CurrentStep   string            `json:"current_step"`
	TotalChunks   int               `json:"total_chunks"`
	IndexedChunks int               `json:"indexed_chunks"`
	LastOrdinal   int               `json:"last_ordinal"`
	FailReason    string            `json:"fail_reason,omitempty"`
	Steps         map[string]string `json:"steps"`
}
