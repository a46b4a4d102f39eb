package ports

// ProgressRecord is the persisted "last position read" for one source.
// One record per source, last write wins. Records outlive the process
// and are only deleted by an explicit reset.
type ProgressRecord struct {
	SourceID string `json:"source_id"`
	Index    int    `json:"index"`    // global word index
	SavedAt  int64  `json:"saved_at"` // unix timestamp of the write
}

// SourceRecord is one catalog entry in the reading library.
// Words and Pages are captured when the source is registered and treated
// as immutable for the life of the record; if the underlying file changes
// out of band the watcher reports it but the record is not rewritten.
type SourceRecord struct {
	ID      string `json:"id"` // stable UUID
	Path    string `json:"path"`
	Title   string `json:"title"`
	Words   int    `json:"words"`
	Pages   int    `json:"pages"`
	AddedAt int64  `json:"added_at"`
}

// ProgressStore persists progress records and the source catalog.
//
// Crash safety: every Save must be transactional. A crash mid-write must
// not corrupt previously committed data. Concurrent reads are safe;
// writes are serialized by the adapter.
type ProgressStore interface {
	// SaveProgress writes a progress record, overwriting any prior
	// record for the same source.
	SaveProgress(rec ProgressRecord) error

	// LoadProgress retrieves the progress record for a source.
	// Returns nil, nil if none exists (source never read).
	LoadProgress(sourceID string) (*ProgressRecord, error)

	// DeleteProgress removes the progress record for a source.
	// Idempotent: deleting a nonexistent record is not an error.
	DeleteProgress(sourceID string) error

	// SaveSource writes a catalog record, overwriting any prior record
	// with the same ID.
	SaveSource(rec SourceRecord) error

	// FindSourceByPath looks a catalog record up by document path.
	// Returns nil, nil if the path was never registered.
	FindSourceByPath(path string) (*SourceRecord, error)

	// ListSources returns all catalog records, ordered by AddedAt.
	ListSources() ([]SourceRecord, error)

	// DeleteSource removes a catalog record and its progress record.
	// Idempotent.
	DeleteSource(sourceID string) error
}
