package app

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarsh/rsvp/internal/domain/stream"
)

// memReader is an in-memory ports.SourceReader for app-layer tests.
type memReader struct {
	mu    sync.Mutex
	texts map[string]string
	fail  bool
}

func newMemReader() *memReader {
	return &memReader{texts: make(map[string]string)}
}

func (m *memReader) ReadAll(handle string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", fmt.Errorf("source offline")
	}
	text, ok := m.texts[handle]
	if !ok {
		return "", fmt.Errorf("no such source %q", handle)
	}
	return text, nil
}

func (m *memReader) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func wordRun(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func openSession(t *testing.T, text string) *stream.Session {
	t.Helper()
	reader := newMemReader()
	reader.texts["doc"] = text
	sess := stream.NewSession(stream.NewCache(reader), nil)
	require.NoError(t, sess.Open("doc", 0))
	t.Cleanup(sess.Close)
	return sess
}

// fastTiming keeps test playback in the low milliseconds.
func fastTiming() stream.Timing {
	return stream.Timing{WordDelay: time.Millisecond, PunctMultiplier: 1}
}

func TestScheduler_PlaysToCompletion(t *testing.T) {
	sess := openSession(t, wordRun(5))

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})
	sched := NewScheduler(sess, fastTiming(), SchedulerHooks{
		OnWord: func(token string, index, total int) {
			mu.Lock()
			seen = append(seen, token)
			mu.Unlock()
		},
		OnComplete: func() { close(done) },
	}, nil)

	sched.Play()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not complete")
	}

	assert.False(t, sched.IsPlaying())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"w0", "w1", "w2", "w3", "w4"}, seen)

	// Position parks on the last word, not past it.
	index, total := sess.Position()
	assert.Equal(t, total-1, index)
}

func TestScheduler_PausePreventsNextAdvance(t *testing.T) {
	sess := openSession(t, wordRun(50))

	firstWord := make(chan struct{})
	var once sync.Once
	sched := NewScheduler(sess, stream.Timing{WordDelay: 80 * time.Millisecond, PunctMultiplier: 1}, SchedulerHooks{
		OnWord: func(string, int, int) { once.Do(func() { close(firstWord) }) },
	}, nil)

	sched.Play()
	select {
	case <-firstWord:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never showed a word")
	}
	sched.Pause()
	assert.False(t, sched.IsPlaying())

	index, _ := sess.Position()
	time.Sleep(200 * time.Millisecond)
	after, _ := sess.Position()
	assert.Equal(t, index, after, "a paused scheduler must not advance")
}

func TestScheduler_PlayWhilePlayingIsNoop(t *testing.T) {
	sess := openSession(t, wordRun(50))

	var transitions counter
	sched := NewScheduler(sess, stream.Timing{WordDelay: 50 * time.Millisecond, PunctMultiplier: 1}, SchedulerHooks{
		OnStateChange: func(bool) { transitions.inc() },
	}, nil)
	t.Cleanup(sched.Pause)

	sched.Play()
	sched.Play()
	sched.Play()
	assert.True(t, sched.IsPlaying())
	assert.Equal(t, 1, transitions.get())
}

func TestScheduler_Toggle(t *testing.T) {
	sess := openSession(t, wordRun(50))
	sched := NewScheduler(sess, stream.Timing{WordDelay: 50 * time.Millisecond, PunctMultiplier: 1}, SchedulerHooks{}, nil)
	t.Cleanup(sched.Pause)

	sched.Toggle()
	assert.True(t, sched.IsPlaying())
	sched.Toggle()
	assert.False(t, sched.IsPlaying())
}

func TestScheduler_EmptySourceCompletesImmediately(t *testing.T) {
	sess := openSession(t, "")

	done := make(chan struct{})
	sched := NewScheduler(sess, fastTiming(), SchedulerHooks{
		OnComplete: func() { close(done) },
	}, nil)

	sched.Play()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("empty source must complete immediately")
	}
	assert.False(t, sched.IsPlaying())
}

func TestScheduler_SetTimingAppliesToNextWord(t *testing.T) {
	sess := openSession(t, wordRun(10))
	sched := NewScheduler(sess, fastTiming(), SchedulerHooks{}, nil)
	t.Cleanup(sched.Pause)

	next := stream.Timing{WordDelay: 300 * time.Millisecond, PunctMultiplier: 1}
	sched.SetTiming(next)
	assert.Equal(t, next, sched.Timing())
}

// counter is a tiny mutex-guarded counter for hook assertions.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestScheduler_ReloadFailurePausesWithoutCompleting(t *testing.T) {
	reader := newMemReader()
	reader.texts["doc"] = wordRun(2500)
	sess := stream.NewSession(stream.NewCache(reader), nil)
	require.NoError(t, sess.Open("doc", 0))
	t.Cleanup(sess.Close)

	var completed counter
	errCh := make(chan error, 1)
	sched := NewScheduler(sess, stream.Timing{WordDelay: 100 * time.Microsecond, PunctMultiplier: 1}, SchedulerHooks{
		OnComplete: func() { completed.inc() },
		OnError: func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	}, nil)

	// The initial window holds the first 1000 words; every read after
	// this point fails, so the edge reload at word 1000 cannot succeed.
	reader.setFail(true)
	sched.Play()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, stream.ErrSourceUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("expected playback to stop with a load error")
	}

	assert.False(t, sched.IsPlaying())
	assert.Equal(t, 0, completed.get(), "a load failure is not sequence completion")

	// The position parks at the window edge, mid-document.
	index, total := sess.Position()
	assert.Equal(t, 999, index)
	assert.Equal(t, 2500, total)
}

func TestScheduler_WordHookSeesMatchingTokenAndIndex(t *testing.T) {
	sess := openSession(t, wordRun(2500))

	type pair struct {
		token string
		index int
	}
	var mu sync.Mutex
	var pairs []pair
	sched := NewScheduler(sess, stream.Timing{WordDelay: 100 * time.Microsecond, PunctMultiplier: 1}, SchedulerHooks{
		OnWord: func(token string, index, total int) {
			mu.Lock()
			pairs = append(pairs, pair{token, index})
			mu.Unlock()
		},
	}, nil)
	t.Cleanup(sched.Pause)

	// Jump around while the loop is running; every hook invocation must
	// still carry the token that lives at its reported index.
	sched.Play()
	for i := 0; i < 50; i++ {
		require.NoError(t, sess.Jump((i * 37) % 2500))
	}
	time.Sleep(20 * time.Millisecond)
	sched.Pause()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, pairs)
	for _, p := range pairs {
		assert.Equal(t, fmt.Sprintf("w%d", p.index), p.token)
	}
}
