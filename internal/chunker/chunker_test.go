package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func makeLines(n, width int) string {
	lines := make([]string, n)
	for i := range lines {
		s := fmt.Sprintf("line%03d", i+1)
		lines[i] = s + strings.Repeat("x", width-len(s))
	}
	return strings.Join(lines, "\n")
}

func chunkSize(text string) int {
	size := 0
	for _, l := range strings.Split(text, "\n") {
		size += len([]rune(l)) + 1
	}
	return size
}

func TestSplitReachesThreshold(t *testing.T) {
	t.Parallel()
	// 50 lines of 49 characters plus separators: 2499 characters.
	content := makeLines(50, 49)
	if len(content) != 2499 {
		t.Fatalf("fixture length = %d", len(content))
	}

	chunks := Split(content, DefaultOptions())
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want more than one", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if got := chunkSize(c.Text); got < DefaultSize {
			t.Errorf("chunk %d size %d below threshold", i, got)
		}
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
	}
}

func TestSplitContiguous(t *testing.T) {
	t.Parallel()
	contents := []string{
		makeLines(50, 49),
		makeLines(7, 300),
		makeLines(120, 13),
		"short\nfile",
		strings.Repeat("a", 3000) + "\nb\nc",
	}
	for ci, content := range contents {
		lines := strings.Split(content, "\n")
		chunks := Split(content, DefaultOptions())

		if chunks[0].StartLine != 1 {
			t.Errorf("content %d: first chunk starts at %d", ci, chunks[0].StartLine)
		}
		if last := chunks[len(chunks)-1]; last.EndLine != len(lines) {
			t.Errorf("content %d: last chunk ends at %d, want %d", ci, last.EndLine, len(lines))
		}
		for i, c := range chunks {
			if want := strings.Join(lines[c.StartLine-1:c.EndLine], "\n"); c.Text != want {
				t.Errorf("content %d chunk %d: text does not match lines %d-%d", ci, i, c.StartLine, c.EndLine)
			}
			if i == 0 {
				continue
			}
			prev := chunks[i-1]
			if c.StartLine > prev.EndLine+1 {
				t.Errorf("content %d: gap between chunk %d (ends %d) and %d (starts %d)", ci, i-1, prev.EndLine, i, c.StartLine)
			}
			if c.EndLine <= prev.EndLine {
				t.Errorf("content %d: chunk %d adds no new lines", ci, i)
			}
		}
	}
}

func TestSplitOverlap(t *testing.T) {
	t.Parallel()
	// Lines of 99 characters count 100 each: chunks close every 10 lines
	// and carry the last 2 lines forward.
	chunks := Split(makeLines(25, 99), DefaultOptions())

	want := [][2]int{{1, 10}, {9, 18}, {17, 25}}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, w := range want {
		if chunks[i].StartLine != w[0] || chunks[i].EndLine != w[1] {
			t.Errorf("chunk %d = lines %d-%d, want %d-%d", i, chunks[i].StartLine, chunks[i].EndLine, w[0], w[1])
		}
	}
}

func TestSplitSkipsPureOverlapTail(t *testing.T) {
	t.Parallel()
	// Exactly 10 lines of 100: one chunk closes on the last line, and the
	// carried-over overlap holds nothing new.
	chunks := Split(makeLines(10, 99), DefaultOptions())
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestSplitLongLine(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("z", 2500)
	chunks := Split("head\n"+long+"\ntail", DefaultOptions())

	if !strings.Contains(chunks[0].Text, long) {
		t.Fatal("long line was split")
	}
	if chunks[0].EndLine != 2 {
		t.Errorf("first chunk ends at %d, want 2", chunks[0].EndLine)
	}
}

func TestSplitSmallAndEmpty(t *testing.T) {
	t.Parallel()
	chunks := Split("", DefaultOptions())
	if len(chunks) != 1 || chunks[0].Text != "" || chunks[0].StartLine != 1 || chunks[0].EndLine != 1 {
		t.Errorf("empty content = %+v", chunks)
	}

	chunks = Split("def f():\n    pass\n", DefaultOptions())
	if len(chunks) != 1 || chunks[0].Text != "def f():\n    pass\n" || chunks[0].EndLine != 3 {
		t.Errorf("small content = %+v", chunks)
	}
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		opts Options
		ok   bool
	}{
		{DefaultOptions(), true},
		{Options{Size: 10, Overlap: 0}, true},
		{Options{Size: 0, Overlap: 0}, false},
		{Options{Size: 10, Overlap: 10}, false},
		{Options{Size: 10, Overlap: -1}, false},
	}
	for _, tt := range tests {
		if err := tt.opts.Validate(); (err == nil) != tt.ok {
			t.Errorf("Validate(%+v) = %v", tt.opts, err)
		}
	}
}
