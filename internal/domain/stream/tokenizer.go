// Package stream implements the windowed word-stream engine: tokenization,
// the batch-aligned word cache, and the session that translates between
// global document positions and the in-memory window backing playback.
package stream

import "strings"

const (
	// MaxTokenLen caps each token at 20 runes. Truncation is lossy
	// and irreversible.
	MaxTokenLen = 20

	// WordsPerPage is the divisor for the page estimate.
	WordsPerPage = 250

	// BatchSize is the unit of cache population. Batches are aligned
	// to floor(index/BatchSize)*BatchSize.
	BatchSize = 1000

	// PrefetchThreshold is how close the position may get to the end
	// of the window before the next batch is fetched in the background.
	PrefetchThreshold = 200
)

// Tokenize splits raw text into word tokens.
// Rules:
//  1. Split on runs of whitespace
//  2. Drop empty tokens
//  3. Truncate each token to MaxTokenLen runes
//
// Input containing NUL bytes is treated as non-text and yields no tokens.
func Tokenize(raw string) []string {
	if raw == "" || strings.ContainsRune(raw, 0) {
		return nil
	}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = truncateToken(f)
	}
	return tokens
}

// EstimatePages returns ceil(totalWords / WordsPerPage).
func EstimatePages(totalWords int) int {
	if totalWords <= 0 {
		return 0
	}
	return (totalWords + WordsPerPage - 1) / WordsPerPage
}

// truncateToken caps a token at MaxTokenLen runes. ASCII words (the
// common case) pass through without a rune conversion.
func truncateToken(tok string) string {
	if len(tok) <= MaxTokenLen {
		return tok
	}
	runes := []rune(tok)
	if len(runes) <= MaxTokenLen {
		return tok
	}
	return string(runes[:MaxTokenLen])
}
