// Package chunker splits file content into overlapping line windows sized
// for embedding models.
package chunker

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Defaults used when Options are zero.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Options sets the window thresholds, in characters.
type Options struct {
	// Size closes a chunk once its accumulated length reaches it.
	Size int
	// Overlap is the minimum length of trailing lines carried into the next
	// chunk.
	Overlap int
}

// DefaultOptions returns the standard 1000/200 thresholds.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate checks that Size is positive and Overlap lies in [0, Size).
func (o Options) Validate() error {
	if o.Size <= 0 {
		return errors.New("chunk size must be positive")
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return errors.New("chunk overlap must be in [0, size)")
	}
	return nil
}

// Chunk is one window of a file.
type Chunk struct {
	Index     int
	Text      string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
}

// Split divides content into windows of whole lines. Each line counts its
// character length plus one for the separator. A window closes as soon as
// its length reaches opts.Size; the next window starts with the shortest
// suffix of the closed one whose length reaches opts.Overlap. Lines are never
// split, so a window holding a long line exceeds Size. The trailing window is
// emitted only if it holds a line the previous chunk does not. This differs
// from the 1000/200 line-window chunker the index format follows, which
// always emits the trailing window; content whose tail is pure overlap
// yields one chunk fewer here, so chunk counts and ids can differ.
//
// Empty content yields a single empty chunk.
func Split(content string, opts Options) []Chunk {
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	emit := func(from, to int) {
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      strings.Join(lines[from:to+1], "\n"),
			StartLine: from + 1,
			EndLine:   to + 1,
		})
	}

	start, size, lastEnd := 0, 0, -1
	for i, line := range lines {
		size += utf8.RuneCountInString(line) + 1
		if size < opts.Size {
			continue
		}
		emit(start, i)
		lastEnd = i

		overlap := 0
		j := i
		for ; j > start; j-- {
			overlap += utf8.RuneCountInString(lines[j]) + 1
			if overlap >= opts.Overlap {
				break
			}
		}
		if j == start {
			overlap = size
		}
		start, size = j, overlap
	}

	if lastEnd < len(lines)-1 {
		emit(start, len(lines)-1)
	}
	return chunks
}
