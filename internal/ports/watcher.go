package ports

// Watcher monitors a single open document for out-of-band modification.
// The word count of an open session is immutable, so a change to the
// underlying file cannot be absorbed mid-session; the engine logs it and
// keeps serving the session's view. Only one Watch call should be active
// at a time.
type Watcher interface {
	// Watch starts monitoring the file at path. onChange is called with
	// the absolute path whenever the file is written, renamed or
	// removed. The callback may be invoked from any goroutine.
	Watch(path string, onChange func(path string)) error

	// Stop ends monitoring and releases all resources. After Stop
	// returns, no further onChange calls will fire. Safe to call
	// multiple times.
	Stop() error
}
