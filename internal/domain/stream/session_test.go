package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, words int) (*Session, *fakeReader) {
	t.Helper()
	reader := newFakeReader()
	reader.texts["book"] = numberedWords(words)
	sess := NewSession(NewCache(reader), nil)
	t.Cleanup(sess.Close)
	return sess, reader
}

func (s *Session) windowBounds() (start, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winStart, len(s.window)
}

func TestSession_OpenLoadsInitialWindow(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	assert.Equal(t, Ready, sess.State())
	start, length := sess.windowBounds()
	assert.Equal(t, 0, start)
	assert.Equal(t, BatchSize, length)

	tok, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "w0", tok)
}

func TestSession_OpenClampsStart(t *testing.T) {
	sess, _ := newTestSession(t, 100)
	require.NoError(t, sess.Open("book", 5000))

	index, total := sess.Position()
	assert.Equal(t, 99, index)
	assert.Equal(t, 100, total)
}

func TestSession_OpenFailureLeavesClosed(t *testing.T) {
	reader := newFakeReader()
	reader.fail["gone"] = true
	reader.texts["other"] = "alpha beta gamma"
	sess := NewSession(NewCache(reader), nil)
	t.Cleanup(sess.Close)

	err := sess.Open("gone", 0)
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, Closed, sess.State())

	// A later open on a healthy source succeeds normally.
	require.NoError(t, sess.Open("other", 0))
	tok, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "alpha", tok)
}

func TestSession_JumpMatchesTokenizedDocument(t *testing.T) {
	sess, reader := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	want := Tokenize(reader.texts["book"])
	for _, i := range []int{0, 1, 537, 999, 1000, 1999, 2000, 2499} {
		require.NoError(t, sess.Jump(i))
		tok, ok := sess.Current()
		require.True(t, ok, "index %d", i)
		assert.Equal(t, want[i], tok, "index %d", i)
	}
}

func TestSession_JumpIsIdempotent(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	require.NoError(t, sess.Jump(1700))
	start1, len1 := sess.windowBounds()
	index1, _ := sess.Position()

	require.NoError(t, sess.Jump(1700))
	start2, len2 := sess.windowBounds()
	index2, _ := sess.Position()

	assert.Equal(t, start1, start2)
	assert.Equal(t, len1, len2)
	assert.Equal(t, index1, index2)
}

func TestSession_JumpClamps(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 10))

	require.NoError(t, sess.Jump(-5))
	index, _ := sess.Position()
	assert.Equal(t, 0, index)

	require.NoError(t, sess.Jump(2500+5))
	index, _ = sess.Position()
	assert.Equal(t, 2499, index)
}

func TestSession_BackwardJumpReplacesWindow(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 1500))

	require.NoError(t, sess.Jump(100))
	start, _ := sess.windowBounds()
	assert.Equal(t, 100, start)

	tok, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "w100", tok)
}

func TestSession_AdvanceAtLastWordSignalsComplete(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 2499))

	tok, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "w2499", tok)

	moved, err := sess.Advance(1)
	require.NoError(t, err)
	assert.False(t, moved)

	// And again: still a no-op, never an index error.
	moved, err = sess.Advance(1)
	require.NoError(t, err)
	assert.False(t, moved)
	index, _ := sess.Position()
	assert.Equal(t, 2499, index)
}

func TestSession_PrefetchGrowsWindowBeforeEdge(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	// 801 forward steps put the position at 801; the low-buffer trigger
	// fired at step 800 (1000 - 800 = 200 tokens remaining).
	for i := 0; i < 801; i++ {
		moved, err := sess.Advance(1)
		require.NoError(t, err)
		require.True(t, moved)
	}
	index, _ := sess.Position()
	require.Equal(t, 801, index)

	require.Eventually(t, func() bool {
		_, length := sess.windowBounds()
		return length == 2*BatchSize
	}, 2*time.Second, time.Millisecond, "prefetch must append the next batch before the edge")

	start, _ := sess.windowBounds()
	assert.Equal(t, 0, start, "growth extends the window, never replaces it")

	// Crossing the old edge must not need a reload.
	for i := 801; i < 1000; i++ {
		moved, err := sess.Advance(1)
		require.NoError(t, err)
		require.True(t, moved)
	}
	tok, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "w1000", tok)
}

func TestSession_WindowGrowthIsContiguous(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	for i := 0; i < 900; i++ {
		_, err := sess.Advance(1)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		_, length := sess.windowBounds()
		return length == 2*BatchSize
	}, 2*time.Second, time.Millisecond)

	// The grown window must be a gapless prefix of the document.
	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.Equal(t, 0, sess.winStart)
	for i, tok := range sess.window {
		require.Equal(t, fmt.Sprintf("w%d", i), tok)
	}
}

func TestSession_ForwardStepsStallButNeverSkipOnSlowPrefetch(t *testing.T) {
	sess, reader := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	// Make every refill slow so steps outrun the background grow.
	reader.delay = 5 * time.Millisecond

	for i := 0; i < 1100; i++ {
		moved, err := sess.Advance(1)
		require.NoError(t, err)
		require.True(t, moved)

		tok, ok := sess.Current()
		require.True(t, ok, "position %d must be backed by the window", i+1)
		require.Equal(t, fmt.Sprintf("w%d", i+1), tok)
	}
}

func TestSession_EmptySourceHasNoValidIndex(t *testing.T) {
	reader := newFakeReader()
	reader.texts["empty"] = ""
	sess := NewSession(NewCache(reader), nil)
	t.Cleanup(sess.Close)

	require.NoError(t, sess.Open("empty", 0))
	assert.Equal(t, Ready, sess.State())

	_, ok := sess.Current()
	assert.False(t, ok)

	moved, err := sess.Advance(1)
	require.NoError(t, err)
	assert.False(t, moved)
	require.NoError(t, sess.Jump(10))
	index, total := sess.Position()
	assert.Zero(t, index)
	assert.Zero(t, total)
}

func TestSession_OperationsOnClosedSession(t *testing.T) {
	sess, _ := newTestSession(t, 10)

	_, err := sess.Advance(1)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, sess.Jump(3), ErrSessionClosed)
	_, ok := sess.Current()
	assert.False(t, ok)
}

func TestSession_FailedSeekKeepsLastGoodWindow(t *testing.T) {
	sess, reader := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	reader.setFail("book", true)
	err := sess.Jump(2200)
	require.ErrorIs(t, err, ErrSourceUnavailable)

	// Position and window are untouched; reading still works.
	index, _ := sess.Position()
	assert.Equal(t, 0, index)
	tok, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "w0", tok)
}

func TestSession_CloseInvalidatesPrefetch(t *testing.T) {
	sess, reader := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	reader.delay = 20 * time.Millisecond
	require.NoError(t, sess.Jump(850)) // inside window; triggers a grow

	sess.Close()
	assert.Equal(t, Closed, sess.State())

	// The in-flight grow lands after close and must be dropped silently.
	time.Sleep(50 * time.Millisecond)
	_, length := sess.windowBounds()
	assert.Zero(t, length)
}

func TestSession_SnapshotPairsTokenWithItsIndex(t *testing.T) {
	sess, _ := newTestSession(t, 2500)
	require.NoError(t, sess.Open("book", 0))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				_ = sess.Jump((i * 37) % 2500)
			}
		}
	}()

	// Under concurrent jumps a snapshot must never pair a token with an
	// index it does not live at.
	for i := 0; i < 300; i++ {
		token, index, total, ok := sess.Snapshot()
		require.Equal(t, 2500, total)
		if ok {
			require.Equal(t, fmt.Sprintf("w%d", index), token)
		}
	}

	close(stop)
	wg.Wait()
}
