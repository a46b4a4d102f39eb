package stream

import (
	"fmt"
	"sync"

	"github.com/dmarsh/rsvp/internal/ports"
)

// Cache owns the mapping from global word index to token for every open
// source. Tokens are populated in fixed-size batches aligned to
// BatchSize; each refill re-reads and re-tokenizes the entire raw text
// so a batch is always consistent with one full read of the document.
//
// Eviction is coarse: once an entry holds more than 2*BatchSize cached
// pairs, the whole entry is cleared before the next batch is installed.
// This bounds memory at a small multiple of one batch at the cost of
// extra re-reads under seek-heavy workloads.
//
// Thread-safe. At most one load per source is in flight at a time;
// concurrent requests for the same source wait for the first to finish.
type Cache struct {
	mu      sync.Mutex
	reader  ports.SourceReader
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	tokens     map[int]string
	totalWords int
	totalKnown bool
	loading    chan struct{} // non-nil while a load is in flight
}

// NewCache creates a cache backed by the given raw-text reader.
func NewCache(reader ports.SourceReader) *Cache {
	return &Cache{
		reader:  reader,
		entries: make(map[string]*cacheEntry),
	}
}

// batchStart returns the aligned start of the batch containing index.
func batchStart(index int) int {
	return (index / BatchSize) * BatchSize
}

// TotalWords returns the word count for a source, computing it on first
// use by reading and tokenizing the full text. The count is immutable
// for the life of the entry; out-of-band content changes do not move it.
func (c *Cache) TotalWords(handle string) (int, error) {
	if err := c.EnsureBatch(handle, 0); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[handle]
	if e == nil {
		// Evicted between the ensure and this read.
		return 0, nil
	}
	return e.totalWords, nil
}

// EnsureBatch makes the batch starting at the aligned position of start
// resident for the source. A failed read leaves the entry unchanged and
// returns ErrSourceUnavailable.
func (c *Cache) EnsureBatch(handle string, start int) error {
	aligned := batchStart(start)

	c.mu.Lock()
	for {
		e, ok := c.entries[handle]
		if !ok {
			e = &cacheEntry{tokens: make(map[int]string)}
			c.entries[handle] = e
		}

		if e.residentLocked(aligned) {
			c.mu.Unlock()
			return nil
		}

		if e.loading == nil {
			break // become the loader
		}

		// Another load is in flight for this source; wait for it and
		// re-check residency.
		ch := e.loading
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}

	e := c.entries[handle]
	ch := make(chan struct{})
	e.loading = ch
	c.mu.Unlock()

	// Full read + tokenize outside the lock.
	text, err := c.reader.ReadAll(handle)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.loading = nil
	defer close(ch)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	tokens := Tokenize(text)
	if !e.totalKnown {
		e.totalWords = len(tokens)
		e.totalKnown = true
	}

	// Coarse whole-entry eviction before installing the new batch.
	if len(e.tokens) > 2*BatchSize {
		e.tokens = make(map[int]string)
	}

	end := aligned + BatchSize
	if end > len(tokens) {
		end = len(tokens)
	}
	for i := aligned; i < end && i < e.totalWords; i++ {
		e.tokens[i] = tokens[i]
	}
	return nil
}

// Read returns up to count tokens starting at the global index start,
// clipped to the source's word count. Indices below zero are skipped;
// fewer than count tokens are returned at end-of-document rather than
// erroring. Every batch covering the requested range is made resident.
func (c *Cache) Read(handle string, start, count int) ([]string, error) {
	if start < 0 {
		count += start
		start = 0
	}
	if count <= 0 {
		return nil, nil
	}

	// The first ensure also establishes the word count.
	if err := c.EnsureBatch(handle, start); err != nil {
		return nil, err
	}

	c.mu.Lock()
	e := c.entries[handle]
	if e == nil {
		// A concurrent Evict beat us here; serve an empty read rather
		// than resurrect the entry for a closing session.
		c.mu.Unlock()
		return nil, nil
	}
	total := e.totalWords
	c.mu.Unlock()

	if start >= total {
		return nil, nil
	}
	end := start + count
	if end > total {
		end = total
	}

	out := make([]string, 0, end-start)
	for pos := start; pos < end; {
		if err := c.EnsureBatch(handle, pos); err != nil {
			return nil, err
		}

		c.mu.Lock()
		e := c.entries[handle]
		if e == nil {
			c.mu.Unlock()
			break
		}
		batchEnd := batchStart(pos) + BatchSize
		for pos < end && pos < batchEnd {
			tok, ok := e.tokens[pos]
			if !ok {
				break
			}
			out = append(out, tok)
			pos++
		}
		c.mu.Unlock()

		if pos < end && pos < batchEnd {
			// A token vanished between ensure and read (entry evicted
			// under extreme churn); return what we have.
			break
		}
	}
	return out, nil
}

// Evict drops the entry for a source. Called when the owning session
// closes.
func (c *Cache) Evict(handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, handle)
}

// residentLocked reports whether the batch at the aligned start needs no
// load: either its first token is cached, or the batch lies entirely
// past the end of the document.
func (e *cacheEntry) residentLocked(aligned int) bool {
	if e.totalKnown && aligned >= e.totalWords {
		return true
	}
	_, ok := e.tokens[aligned]
	return ok
}
