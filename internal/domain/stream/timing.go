package stream

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Timing holds the inter-word delay parameters. It is a plain value
// passed into the playback scheduler at construction, never ambient
// state. Negative fields are treated as zero.
type Timing struct {
	// WordDelay is the base per-word display time.
	WordDelay time.Duration

	// CharDelay is added once per rune of the token.
	CharDelay time.Duration

	// PunctMultiplier scales the delay when the token ends a clause
	// or sentence. Values below 1 are treated as 1.
	PunctMultiplier float64
}

// DefaultTiming is roughly 300 words per minute with a pause on
// sentence boundaries.
func DefaultTiming() Timing {
	return Timing{
		WordDelay:       180 * time.Millisecond,
		CharDelay:       4 * time.Millisecond,
		PunctMultiplier: 2.0,
	}
}

// FromWPM derives a Timing from a words-per-minute target, keeping the
// default per-character and punctuation components.
func FromWPM(wpm int) Timing {
	t := DefaultTiming()
	if wpm > 0 {
		t.WordDelay = time.Minute / time.Duration(wpm)
	}
	return t
}

// WordDuration computes how long a token stays on screen:
// base + perChar*len(token), multiplied when the token carries terminal
// punctuation. Stateless.
func (t Timing) WordDuration(token string) time.Duration {
	base := t.WordDelay
	if base < 0 {
		base = 0
	}
	per := t.CharDelay
	if per < 0 {
		per = 0
	}

	d := base + time.Duration(utf8.RuneCountInString(token))*per
	if hasTerminalPunct(token) {
		m := t.PunctMultiplier
		if m < 1 {
			m = 1
		}
		d = time.Duration(float64(d) * m)
	}
	return d
}

// hasTerminalPunct reports whether the token ends a sentence or clause.
// Trailing quotes and brackets are skipped so `word."` still pauses.
func hasTerminalPunct(token string) bool {
	trimmed := strings.TrimRight(token, `"')]}`+"`")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ';', ':':
		return true
	}
	return false
}
