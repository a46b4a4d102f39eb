package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dmarsh/rsvp/internal/domain/stream"
	"github.com/dmarsh/rsvp/internal/ports"
)

// Library is the catalog of registered sources. Each source gets a
// stable UUID the first time it is opened; word count and page estimate
// are captured at registration and treated as immutable for the life of
// the record.
type Library struct {
	store  ports.ProgressStore
	reader ports.SourceReader
}

// NewLibrary creates a library over the given store and raw-text reader.
func NewLibrary(store ports.ProgressStore, reader ports.SourceReader) *Library {
	return &Library{store: store, reader: reader}
}

// Register returns the catalog record for a path, creating it on first
// use. Creation reads and tokenizes the full document to capture its
// word count.
func (l *Library) Register(path string) (*ports.SourceRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	existing, err := l.store.FindSourceByPath(abs)
	if err != nil {
		return nil, fmt.Errorf("lookup source: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	text, err := l.reader.ReadAll(abs)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w: %v", abs, stream.ErrSourceUnavailable, err)
	}
	tokens := stream.Tokenize(text)

	rec := ports.SourceRecord{
		ID:      uuid.NewString(),
		Path:    abs,
		Title:   filepath.Base(abs),
		Words:   len(tokens),
		Pages:   stream.EstimatePages(len(tokens)),
		AddedAt: time.Now().Unix(),
	}
	if err := l.store.SaveSource(rec); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}
	return &rec, nil
}

// FindByPath looks a catalog record up by document path, or nil if the
// path was never registered.
func (l *Library) FindByPath(path string) (*ports.SourceRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return l.store.FindSourceByPath(abs)
}

// List returns all catalog records, oldest first.
func (l *Library) List() ([]ports.SourceRecord, error) {
	return l.store.ListSources()
}

// Progress returns the saved position for a record, or nil if it was
// never read.
func (l *Library) Progress(sourceID string) (*ports.ProgressRecord, error) {
	return l.store.LoadProgress(sourceID)
}

// Reset deletes the persisted position for a path. The catalog record
// stays. Unregistered paths are a no-op.
func (l *Library) Reset(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rec, err := l.store.FindSourceByPath(abs)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return l.store.DeleteProgress(rec.ID)
}

// Remove deletes a source's catalog record and progress. Idempotent.
func (l *Library) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rec, err := l.store.FindSourceByPath(abs)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return l.store.DeleteSource(rec.ID)
}
