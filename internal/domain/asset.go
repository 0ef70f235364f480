package domain

import "time"

// AssetKind enumerates asset types.
type AssetKind string

const (
	AssetKindImage    AssetKind = "image"
	AssetKindAudio    AssetKind = "audio"
	AssetKindMetadata AssetKind = "metadata"
)

// Asset records one durably stored artifact produced for a job. The
// table is an append-only audit trail; control flow reads scene and job
// columns, never assets.
type Asset struct {
	ID         string
	JobID      string
	SceneID    string
	Kind       AssetKind
	StorageKey string
	URL        string
	Metadata   []byte
	CreatedAt  time.Time
}
