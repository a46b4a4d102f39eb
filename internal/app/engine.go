// Package app wires the word-stream engine together: the cache-backed
// session, the playback scheduler, the progress persister, the source
// catalog and the change watcher. It is the public surface a frontend
// (the CLI, the terminal view) talks to.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	bboltstore "github.com/dmarsh/rsvp/internal/adapters/bbolt"
	fsw "github.com/dmarsh/rsvp/internal/adapters/fsnotify"
	"github.com/dmarsh/rsvp/internal/adapters/textfile"
	"github.com/dmarsh/rsvp/internal/domain/stream"
	"github.com/dmarsh/rsvp/internal/ports"
)

// Config holds initialization parameters for the Engine.
type Config struct {
	DBPath       string        // path to bbolt file (default: ~/.rsvp/rsvp.db)
	Timing       stream.Timing // zero value = stream.DefaultTiming()
	SaveInterval time.Duration // periodic save cadence (default 2s)
	NavQuiet     time.Duration // quiet period after manual navigation (default 500ms)
	Hooks        SchedulerHooks
	Log          *slog.Logger
}

// Engine owns one open source at a time and exposes the playback and
// seeking operations over it. All index mutation flows through the
// session; the scheduler and the persister never hold a private copy of
// the position across a suspension point.
type Engine struct {
	log     *slog.Logger
	store   *bboltstore.Store
	reader  ports.SourceReader
	cache   *stream.Cache
	sess    *stream.Session
	sched   *Scheduler
	library *Library

	saveInterval time.Duration
	navQuiet     time.Duration

	mu      sync.Mutex
	current *ports.SourceRecord
	watcher ports.Watcher

	persMu sync.Mutex
	pers   *Persister
}

// New creates an Engine with all adapters wired. No source is open yet.
func New(cfg Config) (*Engine, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Timing == (stream.Timing{}) {
		cfg.Timing = stream.DefaultTiming()
	}
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".rsvp", "rsvp.db")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := bboltstore.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reader := textfile.NewReader()
	cache := stream.NewCache(reader)
	sess := stream.NewSession(cache, cfg.Log)

	e := &Engine{
		log:          cfg.Log,
		store:        store,
		reader:       reader,
		cache:        cache,
		sess:         sess,
		library:      NewLibrary(store, reader),
		saveInterval: cfg.SaveInterval,
		navQuiet:     cfg.NavQuiet,
	}

	hooks := cfg.Hooks
	userState := hooks.OnStateChange
	hooks.OnStateChange = func(playing bool) {
		e.onPlayState(playing)
		if userState != nil {
			userState(playing)
		}
	}
	e.sched = NewScheduler(sess, cfg.Timing, hooks, cfg.Log)

	return e, nil
}

// Open binds the engine to a source, registering it in the library on
// first use. start is the global word index to anchor at; a negative
// start resumes from the persisted position (or the beginning). An
// already-open source is closed first. On failure the session is left
// Closed and the error wraps stream.ErrSourceUnavailable.
func (e *Engine) Open(path string, start int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.closeLocked()
	}

	rec, err := e.library.Register(path)
	if err != nil {
		return err
	}

	if start < 0 {
		start = 0
		if prev, err := e.store.LoadProgress(rec.ID); err == nil && prev != nil {
			start = prev.Index
		}
	}

	if err := e.sess.Open(rec.Path, start); err != nil {
		return err
	}

	// The progress record exists from the first successful window load on.
	index, _ := e.sess.Position()
	if err := e.store.SaveProgress(ports.ProgressRecord{
		SourceID: rec.ID,
		Index:    index,
		SavedAt:  time.Now().Unix(),
	}); err != nil {
		e.log.Warn("initial progress save failed", "source", rec.ID, "error", err)
	}

	pers := NewPersister(PersisterConfig{
		Store:    e.store,
		Session:  e.sess,
		SourceID: rec.ID,
		Interval: e.saveInterval,
		NavQuiet: e.navQuiet,
		Log:      e.log,
	})
	pers.Start()
	e.setPersister(pers)

	if w, werr := fsw.NewWatcher(); werr == nil {
		path := rec.Path
		if werr = w.Watch(path, func(string) {
			e.log.Warn("source modified on disk; the open session keeps its original word count", "path", path)
		}); werr == nil {
			e.watcher = w
		} else {
			w.Stop()
			e.log.Warn("source watch unavailable", "path", path, "error", werr)
		}
	} else {
		e.log.Warn("source watch unavailable", "error", werr)
	}

	e.current = rec
	e.log.Info("source opened", "path", rec.Path, "words", rec.Words, "start", index)
	return nil
}

// Close releases the open source: playback stops, one final position
// save is flushed, the watcher and any in-flight prefetch are cancelled,
// and the cache entry is dropped. No-op when nothing is open.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

// closeLocked requires e.mu held.
func (e *Engine) closeLocked() {
	if e.current == nil {
		return
	}

	e.sched.Pause()

	if p := e.takePersister(); p != nil {
		p.SaveNow()
		p.Stop()
	}
	if e.watcher != nil {
		e.watcher.Stop()
		e.watcher = nil
	}

	e.sess.Close()
	e.log.Info("source closed", "path", e.current.Path)
	e.current = nil
}

// Shutdown closes the open source and the underlying store.
func (e *Engine) Shutdown() error {
	e.Close()
	return e.store.Close()
}

// Play starts playback. No-op when nothing is open.
func (e *Engine) Play() {
	if e.Source() == nil {
		return
	}
	e.sched.Play()
}

// Pause stops playback before the next advance.
func (e *Engine) Pause() {
	e.sched.Pause()
}

// TogglePlay flips between playing and paused.
func (e *Engine) TogglePlay() {
	if e.Source() == nil {
		return
	}
	e.sched.Toggle()
}

// IsPlaying reports whether playback is active.
func (e *Engine) IsPlaying() bool {
	return e.sched.IsPlaying()
}

// Next advances one word. moved is false at the end of the sequence.
func (e *Engine) Next() (moved bool, err error) {
	moved, err = e.sess.Advance(1)
	e.notifyNavigate()
	return moved, err
}

// Previous steps back one word. moved is false at the beginning.
func (e *Engine) Previous() (moved bool, err error) {
	moved, err = e.sess.Advance(-1)
	e.notifyNavigate()
	return moved, err
}

// Jump seeks to an explicit global index, clamped to the valid range.
func (e *Engine) Jump(index int) error {
	err := e.sess.Jump(index)
	e.notifyNavigate()
	return err
}

// CurrentWord returns the token at the current position. ok is false
// when nothing is open or the source has no words.
func (e *Engine) CurrentWord() (token string, ok bool) {
	return e.sess.Current()
}

// Progress returns the current global index and the total word count.
func (e *Engine) Progress() (index, total int) {
	return e.sess.Position()
}

// SetTiming swaps the playback delay parameters.
func (e *Engine) SetTiming(t stream.Timing) {
	e.sched.SetTiming(t)
}

// Timing returns the active delay parameters.
func (e *Engine) Timing() stream.Timing {
	return e.sched.Timing()
}

// Source returns the catalog record of the open source, or nil.
func (e *Engine) Source() *ports.SourceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Library returns the source catalog.
func (e *Engine) Library() *Library {
	return e.library
}

// onPlayState forwards play/pause transitions to the active persister.
func (e *Engine) onPlayState(playing bool) {
	e.persMu.Lock()
	p := e.pers
	e.persMu.Unlock()
	if p != nil {
		p.OnPlayStateChange(playing)
	}
}

func (e *Engine) notifyNavigate() {
	e.persMu.Lock()
	p := e.pers
	e.persMu.Unlock()
	if p != nil {
		p.OnNavigate()
	}
}

func (e *Engine) setPersister(p *Persister) {
	e.persMu.Lock()
	e.pers = p
	e.persMu.Unlock()
}

func (e *Engine) takePersister() *Persister {
	e.persMu.Lock()
	p := e.pers
	e.pers = nil
	e.persMu.Unlock()
	return p
}
