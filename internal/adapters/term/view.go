// Package term renders the reader as a full-screen terminal view using
// tcell: the current word centered and enlarged by whitespace, a status
// line with position and pace, and single-key playback controls. It is
// a thin display layer — every state change goes through the engine.
package term

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/dmarsh/rsvp/internal/app"
	"github.com/dmarsh/rsvp/internal/domain/stream"
)

// wpmStep is the pace change per +/- keypress.
const wpmStep = 25

// View is the interactive reader screen.
type View struct {
	screen  tcell.Screen
	engine  *app.Engine
	refresh chan struct{}
	done    bool
	stalled bool
	wpm     int
}

// NewView initializes the terminal and binds the view to an engine.
// refresh is signalled by the engine's playback hooks whenever the word
// on screen should be redrawn; the CLI wires it into app.SchedulerHooks.
func NewView(engine *app.Engine, refresh chan struct{}, wpm int) (*View, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.HideCursor()

	if wpm <= 0 {
		wpm = int(time.Minute / engine.Timing().WordDelay)
	}
	return &View{
		screen:  screen,
		engine:  engine,
		refresh: refresh,
		wpm:     wpm,
	}, nil
}

// Run draws until the user quits. Blocks the calling goroutine.
func (v *View) Run() error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer close(quit)

	v.draw()
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if v.handleKey(ev) {
					return nil
				}
			case *tcell.EventResize:
				v.screen.Sync()
			}
		case <-v.refresh:
			// Collapse queued redraws into one.
			for {
				select {
				case <-v.refresh:
					continue
				default:
				}
				break
			}
		}
		v.draw()
	}
}

// Close restores the terminal.
func (v *View) Close() {
	v.screen.Fini()
}

// handleKey maps a keypress to an engine operation. Returns true to quit.
func (v *View) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRight:
		v.step(+1)
		return false
	case tcell.KeyLeft:
		v.step(-1)
		return false
	}

	switch ev.Rune() {
	case 'q':
		return true
	case ' ':
		v.done = false
		v.stalled = false
		v.engine.TogglePlay()
	case 'l':
		v.step(+1)
	case 'h':
		v.step(-1)
	case 'g':
		v.engine.Pause()
		v.done = false
		v.stalled = false
		v.engine.Jump(0)
	case 'G':
		v.engine.Pause()
		_, total := v.engine.Progress()
		v.engine.Jump(total - 1)
	case '+', '=':
		v.setWPM(v.wpm + wpmStep)
	case '-', '_':
		v.setWPM(v.wpm - wpmStep)
	}
	return false
}

// step pauses playback and moves one word. Rewinding mid-delay would
// race the pending advance, so manual steps always pause first.
func (v *View) step(delta int) {
	v.engine.Pause()
	v.done = false
	v.stalled = false
	if delta > 0 {
		v.engine.Next()
	} else {
		v.engine.Previous()
	}
}

func (v *View) setWPM(wpm int) {
	if wpm < 50 {
		wpm = 50
	}
	if wpm > 1500 {
		wpm = 1500
	}
	v.wpm = wpm
	v.engine.SetTiming(stream.FromWPM(wpm))
}

// MarkComplete flags the end-of-sequence state for the status line.
// Wired into the engine's OnComplete hook by the CLI.
func (v *View) MarkComplete() {
	v.done = true
}

// MarkStalled flags that playback paused because more content could not
// be loaded. Wired into the engine's OnError hook by the CLI; cleared by
// the next manual action.
func (v *View) MarkStalled() {
	v.stalled = true
}

func (v *View) draw() {
	v.screen.Clear()
	width, height := v.screen.Size()
	if width <= 0 || height <= 0 {
		v.screen.Show()
		return
	}

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	wordStyle := tcell.StyleDefault.Bold(true)
	statusStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)

	if src := v.engine.Source(); src != nil {
		drawText(v.screen, 1, 0, titleStyle, src.Title)
	}

	word, ok := v.engine.CurrentWord()
	if !ok {
		word = "(empty)"
		wordStyle = titleStyle
	}
	drawText(v.screen, (width-utf8.RuneCountInString(word))/2, height/2, wordStyle, word)

	index, total := v.engine.Progress()
	status := v.statusLine(index, total)
	drawText(v.screen, 1, height-1, statusStyle, status)

	v.screen.Show()
}

func (v *View) statusLine(index, total int) string {
	state := "paused"
	switch {
	case v.stalled:
		state = "stalled: cannot load more"
	case v.done:
		state = "done"
	case v.engine.IsPlaying():
		state = "playing"
	}

	position := "0/0 (0%)"
	if total > 0 {
		pct := float64(index+1) / float64(total) * 100
		position = fmt.Sprintf("%d/%d (%.0f%%)", index+1, total, pct)
	}
	return fmt.Sprintf("%s │ %s │ %d wpm │ space play/pause  ←/→ step  g/G ends  +/- pace  q quit",
		state, position, v.wpm)
}

// drawText writes a string at (x, y), clipping to the screen.
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	if y < 0 {
		return
	}
	if x < 0 {
		x = 0
	}
	width, height := s.Size()
	if y >= height {
		return
	}
	col := x
	for _, r := range text {
		if col >= width {
			break
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
}
