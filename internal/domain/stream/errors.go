package stream

import "errors"

var (
	// ErrSourceUnavailable means the raw text of a source could not be
	// read. Surfaced synchronously from Open; during playback a
	// prefetch that hits it is retried on the next low-buffer trigger
	// instead of stopping playback.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSessionClosed is returned by operations on a session that has
	// not been opened or has been closed.
	ErrSessionClosed = errors.New("session closed")
)
