package schemas

// InputSnapshot is a manifest's per-id record of the latest input edit.
type InputSnapshot struct {
	Hash          string `json:"hash"`
	PayloadDigest string `json:"payloadDigest"`
	CreatedAt     string `json:"createdAt"`
}

// ArtefactSnapshot is a manifest's per-id record of the latest succeeded
// artefact production.
type ArtefactSnapshot struct {
	Hash        string         `json:"hash"`
	Blob        *BlobRef       `json:"blob,omitempty"`
	Inline      *string        `json:"inline,omitempty"`
	ProducedBy  string         `json:"producedBy"`
	Status      ArtefactStatus `json:"status"`
	Diagnostics Diagnostics    `json:"diagnostics,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

// Manifest is an immutable snapshot of a movie's state at a revision
// (spec.md §3.6).
type Manifest struct {
	Revision     string                       `json:"revision"`
	BaseRevision *string                      `json:"baseRevision"`
	CreatedAt    string                       `json:"createdAt"`
	Inputs       map[string]InputSnapshot     `json:"inputs"`
	Artefacts    map[string]ArtefactSnapshot  `json:"artefacts"`
	Timeline     map[string]interface{}       `json:"timeline"`
}

// Pointer is the atomically-swappable file naming the current manifest
// (spec.md §3.6).
type Pointer struct {
	Revision     *string `json:"revision"`
	ManifestPath *string `json:"manifestPath"`
	Hash         *string `json:"hash"`
	UpdatedAt    *string `json:"updatedAt"`
}
