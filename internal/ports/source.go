// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

// SourceReader provides the full raw text of a document given its handle
// (an absolute file path for the textfile adapter, but the domain treats
// it as opaque). The reader is called once per cache refill; the word
// stream re-reads and re-tokenizes the whole document on every refill so
// a stale partial view can never be served.
type SourceReader interface {
	// ReadAll returns the entire text of the source. A read failure
	// (missing file, permission error) returns a non-nil error; the
	// caller surfaces it as a source-unavailable condition. Binary
	// content is returned as an empty string rather than an error.
	ReadAll(handle string) (string, error)
}
