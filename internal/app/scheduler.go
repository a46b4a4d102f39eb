package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dmarsh/rsvp/internal/domain/stream"
)

// SchedulerHooks are callbacks fired by the playback loop. All fields
// are optional. Hooks are invoked outside the scheduler's lock and must
// not call back into Play/Pause from the same goroutine chain.
type SchedulerHooks struct {
	// OnWord fires when a word becomes current: once when playback
	// lands on it and once per subsequent step.
	OnWord func(token string, index, total int)

	// OnStateChange fires on every play/pause transition.
	OnStateChange func(playing bool)

	// OnComplete fires when playback steps past the last word.
	OnComplete func()

	// OnError fires when playback pauses because more content could
	// not be loaded. Distinct from OnComplete: the document is not
	// finished, the source just stopped serving reads.
	OnError func(err error)
}

// Scheduler drives forward playback over a stream session: show the
// current word, wait out its computed delay, advance by one, repeat.
// Pausing takes effect before the pending delay elapses — a pause
// request always prevents the next advance from firing.
type Scheduler struct {
	sess  *stream.Session
	hooks SchedulerHooks
	log   *slog.Logger

	mu      sync.Mutex
	timing  stream.Timing
	playing bool
	cancel  chan struct{} // closed to stop the active run loop
}

// NewScheduler creates a paused scheduler over the given session.
func NewScheduler(sess *stream.Session, timing stream.Timing, hooks SchedulerHooks, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		sess:   sess,
		timing: timing,
		hooks:  hooks,
		log:    log,
	}
}

// Play starts the playback loop. No-op while already playing.
func (s *Scheduler) Play() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	cancel := make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()

	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(true)
	}
	go s.run(cancel)
}

// Pause stops the playback loop before its next advance. No-op while
// already paused.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	close(s.cancel)
	s.mu.Unlock()

	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(false)
	}
}

// Toggle flips between playing and paused.
func (s *Scheduler) Toggle() {
	if s.IsPlaying() {
		s.Pause()
	} else {
		s.Play()
	}
}

// IsPlaying reports whether the playback loop is active.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetTiming swaps the delay parameters; the next word uses them.
func (s *Scheduler) SetTiming(t stream.Timing) {
	s.mu.Lock()
	s.timing = t
	s.mu.Unlock()
}

// Timing returns the active delay parameters.
func (s *Scheduler) Timing() stream.Timing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timing
}

// run is the playback loop for one Play call. cancel identifies this
// run; a Pause closes it and the loop exits without advancing.
func (s *Scheduler) run(cancel chan struct{}) {
	for {
		token, index, total, ok := s.sess.Snapshot()
		if !ok {
			// Empty source or session closed underneath us.
			s.complete(cancel)
			return
		}

		if s.hooks.OnWord != nil {
			s.hooks.OnWord(token, index, total)
		}

		timer := time.NewTimer(s.Timing().WordDuration(token))
		select {
		case <-cancel:
			timer.Stop()
			return
		case <-timer.C:
			// Both channels can be ready at once; a pause that landed
			// while the timer was pending still wins.
			select {
			case <-cancel:
				return
			default:
			}
		}

		moved, err := s.sess.Advance(1)
		if err != nil {
			s.log.Warn("playback advance failed", "error", err)
			s.fail(cancel, err)
			return
		}
		if !moved {
			s.complete(cancel)
			return
		}
	}
}

// complete transitions to paused from inside the run loop and fires the
// completion hook. A concurrent Pause that already closed this run's
// cancel channel wins and complete does nothing.
func (s *Scheduler) complete(cancel chan struct{}) {
	if !s.stopRun(cancel) {
		return
	}
	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(false)
	}
	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete()
	}
}

// fail transitions to paused from inside the run loop when more content
// could not be loaded. The position stays where it is and OnError fires
// instead of OnComplete, so the document never reads as finished.
func (s *Scheduler) fail(cancel chan struct{}, err error) {
	if !s.stopRun(cancel) {
		return
	}
	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(false)
	}
	if s.hooks.OnError != nil {
		s.hooks.OnError(err)
	}
}

// stopRun moves to paused if the given run is still the active one.
// Returns false when a concurrent Pause already closed its cancel
// channel.
func (s *Scheduler) stopRun(cancel chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.cancel != cancel {
		return false
	}
	s.playing = false
	close(s.cancel)
	return true
}
