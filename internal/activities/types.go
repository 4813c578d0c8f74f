package activities

type PrepareDocumentInput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
}

// PrepareDocumentOutput stays small whatever the document size: chunk texts
// are spilled to SpillDir and read back one at a time.
type PrepareDocumentOutput struct {
	RawFormat   string `json:"raw_format"`
	TotalChunks int    `json:"total_chunks"`
	SpillDir    string `json:"spill_dir"`
}

type IndexChunkInput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Ordinal    int    `json:"ordinal"`
	SpillDir   string `json:"spill_dir"`
}

type RemoveStagedFileInput struct {
	Path     string `json:"path"`
	SpillDir string `json:"spill_dir,omitempty"`
}
