package stream

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the lifecycle of a Session.
type State int

const (
	// Closed means no source is bound; all operations fail with
	// ErrSessionClosed.
	Closed State = iota

	// Loading means Open is fetching the word count and the initial
	// window.
	Loading

	// Ready means the session serves reads, advances and jumps.
	Ready
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is one active binding of a source to a position and a window.
// It translates global word indices to positions inside the window,
// reloads the window on jumps, and grows it in the background before
// playback reaches its end.
//
// Invariant: ensure-then-advance. The position never moves to an index
// the window does not already hold; when a background grow has not
// landed in time, the advance path falls back to a synchronous reload.
// Playback may stall one tick at a window edge but never misses a word.
//
// All methods are safe for concurrent use. One session per source at a
// time; a second session on the same source is unsupported.
type Session struct {
	cache *Cache
	log   *slog.Logger

	mu          sync.Mutex
	state       State
	source      string
	total       int
	index       int
	winStart    int
	window      []string
	gen         int // window generation; bumped when the window is replaced
	prefetching bool
}

// NewSession creates a closed session over the given cache.
func NewSession(cache *Cache, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{cache: cache, log: log}
}

// Open binds the session to a source and loads the initial window of
// BatchSize tokens anchored at start (clamped into the valid range).
// On a read failure the session transitions back to Closed and the
// error wraps ErrSourceUnavailable.
func (s *Session) Open(source string, start int) error {
	s.mu.Lock()
	s.state = Loading
	s.mu.Unlock()

	total, err := s.cache.TotalWords(source)
	if err != nil {
		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()
		return fmt.Errorf("open %s: %w", source, err)
	}

	start = clamp(start, 0, total-1)

	var window []string
	if total > 0 {
		window, err = s.cache.Read(source, start, BatchSize)
		if err != nil {
			s.mu.Lock()
			s.state = Closed
			s.mu.Unlock()
			return fmt.Errorf("open %s: %w", source, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.total = total
	s.index = start
	s.winStart = start
	s.window = window
	s.gen++
	s.prefetching = false
	s.state = Ready
	return nil
}

// Close unbinds the source and releases its cache entry. Any in-flight
// window grow is invalidated by the generation bump and its result is
// dropped. Safe to call on a closed session.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	source := s.source
	s.state = Closed
	s.gen++
	s.source = ""
	s.total = 0
	s.index = 0
	s.winStart = 0
	s.window = nil
	s.mu.Unlock()

	s.cache.Evict(source)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the current global index and the total word count.
func (s *Session) Position() (index, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.total
}

// Current returns the token at the current position. ok is false when
// the session is not ready or the source has no words.
func (s *Session) Current() (token string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready || s.total == 0 {
		return "", false
	}
	local := s.index - s.winStart
	if local < 0 || local >= len(s.window) {
		return "", false
	}
	return s.window[local], true
}

// Snapshot returns the current token together with the position it was
// read at, under one lock acquisition. Callers that need both (the
// playback loop feeding its word hook) use this instead of Current plus
// Position, which a concurrent jump could interleave.
func (s *Session) Snapshot() (token string, index, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, total = s.index, s.total
	if s.state != Ready || s.total == 0 {
		return "", index, total, false
	}
	local := s.index - s.winStart
	if local < 0 || local >= len(s.window) {
		return "", index, total, false
	}
	return s.window[local], index, total, true
}

// Advance moves the position by delta words, clamped to the valid
// range. moved is false when the position did not change — in
// particular, a forward step at the last word signals sequence-complete
// without erroring. Small forward steps near the window edge trigger a
// background grow; moves outside the window reload it synchronously.
func (s *Session) Advance(delta int) (moved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return false, ErrSessionClosed
	}
	if s.total == 0 {
		return false, nil
	}

	target := clamp(s.index+delta, 0, s.total-1)
	if target == s.index {
		return false, nil
	}
	if err := s.seekLocked(target); err != nil {
		return false, err
	}
	return true, nil
}

// Jump seeks to an explicit global index, clamped to the valid range.
// If the target is outside the current window a fresh window anchored
// at the target is loaded before Jump returns.
func (s *Session) Jump(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return ErrSessionClosed
	}
	if s.total == 0 {
		return nil
	}
	return s.seekLocked(clamp(index, 0, s.total-1))
}

// AtEnd reports whether the position is on the last word.
func (s *Session) AtEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total > 0 && s.index == s.total-1
}

// seekLocked moves the position to target, which must already be
// clamped. Held lock required. Inside the window the move is a pure
// index update plus an optional background grow; outside it the window
// is replaced synchronously, keeping the last good window on failure.
func (s *Session) seekLocked(target int) error {
	winEnd := s.winStart + len(s.window)
	if target >= s.winStart && target < winEnd {
		s.index = target
		s.maybeGrowLocked(target, winEnd)
		return nil
	}

	// Jump path: synchronous reload anchored at the target. The
	// generation bump invalidates any grow still in flight.
	s.gen++
	window, err := s.cache.Read(s.source, target, BatchSize)
	if err != nil {
		return fmt.Errorf("seek to %d: %w", target, err)
	}
	s.window = window
	s.winStart = target
	s.index = target
	s.prefetching = false
	return nil
}

// maybeGrowLocked starts a background fetch of the next batch when the
// position is within PrefetchThreshold tokens of the window's end and
// no grow is already in flight.
func (s *Session) maybeGrowLocked(target, winEnd int) {
	if winEnd >= s.total || winEnd-target > PrefetchThreshold || s.prefetching {
		return
	}
	s.prefetching = true
	go s.grow(s.source, s.gen, winEnd)
}

// grow fetches BatchSize tokens starting at from and appends them to
// the window, continuing the contiguous run with no gap or overlap.
// The result is dropped if the window was replaced or the session
// closed while the fetch was in flight. A failed fetch is logged and
// retried on the next low-buffer trigger.
func (s *Session) grow(source string, gen, from int) {
	tokens, err := s.cache.Read(source, from, BatchSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Ready {
		return
	}
	s.prefetching = false
	if err != nil {
		s.log.Warn("window grow failed", "source", source, "from", from, "error", err)
		return
	}
	if s.winStart+len(s.window) != from {
		return
	}
	s.window = append(s.window, tokens...)
}

// clamp bounds v into [lo, hi]. hi below lo collapses to lo.
func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
