package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dmarsh/rsvp/internal/domain/stream"
	"github.com/dmarsh/rsvp/internal/ports"
)

const (
	// defaultSaveInterval is the periodic save cadence while playing.
	defaultSaveInterval = 2000 * time.Millisecond

	// defaultNavQuiet is the quiet period after manual navigation
	// before the position is saved.
	defaultNavQuiet = 500 * time.Millisecond
)

// PersisterConfig holds initialization parameters for a Persister.
type PersisterConfig struct {
	Store    ports.ProgressStore
	Session  *stream.Session
	SourceID string
	Interval time.Duration // 0 = defaultSaveInterval
	NavQuiet time.Duration // 0 = defaultNavQuiet
	Log      *slog.Logger
}

// Persister writes the session's position to the progress store under
// three independent triggers: a fixed interval while playing, every
// play/pause transition, and a quiet period after manual navigation.
// Every save reads the session's index at write time — never a value
// captured when the trigger was scheduled — so a concurrent jump can
// never be undone by a stale write. Failed writes are logged and
// swallowed; playback is unaffected.
type Persister struct {
	store    ports.ProgressStore
	sess     *stream.Session
	sourceID string
	interval time.Duration
	quiet    time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	playing bool
	stopped bool

	navCh chan struct{}
	done  chan struct{}
}

// NewPersister creates a persister. Call Start to begin the trigger
// loop and Stop to end it.
func NewPersister(cfg PersisterConfig) *Persister {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSaveInterval
	}
	if cfg.NavQuiet <= 0 {
		cfg.NavQuiet = defaultNavQuiet
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Persister{
		store:    cfg.Store,
		sess:     cfg.Session,
		sourceID: cfg.SourceID,
		interval: cfg.Interval,
		quiet:    cfg.NavQuiet,
		log:      cfg.Log,
		navCh:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the trigger loop.
func (p *Persister) Start() {
	go p.loop()
}

// Stop ends the trigger loop. It does not write; callers that need a
// final save call SaveNow first. Safe to call multiple times.
func (p *Persister) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.done)
}

// OnPlayStateChange records the play flag and saves immediately.
func (p *Persister) OnPlayStateChange(playing bool) {
	p.mu.Lock()
	p.playing = playing
	p.mu.Unlock()
	p.SaveNow()
}

// OnNavigate signals a manual position change. The save fires after the
// quiet period; navigating again inside it restarts the wait.
func (p *Persister) OnNavigate() {
	select {
	case p.navCh <- struct{}{}:
	default:
	}
}

// SaveNow writes the session's current position. A failed write is
// logged and swallowed.
func (p *Persister) SaveNow() {
	index, _ := p.sess.Position()
	rec := ports.ProgressRecord{
		SourceID: p.sourceID,
		Index:    index,
		SavedAt:  time.Now().Unix(),
	}
	if err := p.store.SaveProgress(rec); err != nil {
		p.log.Warn("progress save failed", "source", p.sourceID, "index", index, "error", err)
	}
}

// loop multiplexes the three triggers onto one goroutine.
func (p *Persister) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var quietTimer *time.Timer
	var quietC <-chan time.Time

	for {
		select {
		case <-ticker.C:
			if p.isPlaying() {
				p.SaveNow()
			}

		case <-p.navCh:
			if quietTimer != nil {
				quietTimer.Stop()
			}
			quietTimer = time.NewTimer(p.quiet)
			quietC = quietTimer.C

		case <-quietC:
			quietC = nil
			p.SaveNow()

		case <-p.done:
			if quietTimer != nil {
				quietTimer.Stop()
			}
			return
		}
	}
}

func (p *Persister) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
