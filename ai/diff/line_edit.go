package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/inkwell/store"
)

// SplitLines splits text on "\n". The empty string is one empty line.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// NumberLines prefixes each line with its 1-based number ("2| text").
func NumberLines(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for i, line := range SplitLines(text) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d| %s", i+1, line)
	}
	return b.String()
}

// ApplyLineEdits applies edits against the original line numbering of text.
// Edits are spliced from the highest startLine down so that earlier ranges
// keep their positions. Out-of-range positions are clamped to the document.
// Edits must be derived from text itself; replaying them on the output is
// not meaningful.
func ApplyLineEdits(text string, edits []store.LineEdit) string {
	if len(edits) == 0 {
		return text
	}
	lines := SplitLines(text)

	ordered := make([]store.LineEdit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartLine > ordered[j].StartLine })

	for _, e := range ordered {
		start := clamp(e.StartLine-1, 0, len(lines))
		var insert []string
		if e.NewText != "" || e.IsInsertion() {
			insert = SplitLines(e.NewText)
		}
		end := start
		if !e.IsInsertion() {
			end = clamp(e.EndLine, start, len(lines))
		}
		lines = splice(lines, start, end, insert)
	}
	return strings.Join(lines, "\n")
}

func splice(lines []string, start, end int, insert []string) []string {
	out := make([]string, 0, len(lines)-(end-start)+len(insert))
	out = append(out, lines[:start]...)
	out = append(out, insert...)
	return append(out, lines[end:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mismatch is one line whose live text differs from an edit's expectedText.
type Mismatch struct {
	Line     int    `json:"line"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ValidationResult reports whether edits still match the live document.
type ValidationResult struct {
	Valid      bool       `json:"valid"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// ValidateLineEditsConsistency compares each line of an edit's expectedText
// with the live line at the same offset from startLine. Pure insertions and
// edits without expectedText are skipped. A line past the document end has
// an empty actual text.
func ValidateLineEditsConsistency(currentLines []string, edits []store.LineEdit) ValidationResult {
	var mismatches []Mismatch
	for _, e := range edits {
		if e.ExpectedText == nil || e.IsInsertion() {
			continue
		}
		expected := SplitLines(*e.ExpectedText)
		for i, want := range expected {
			n := e.StartLine + i
			var got string
			if n >= 1 && n <= len(currentLines) {
				got = currentLines[n-1]
			}
			if want != got {
				mismatches = append(mismatches, Mismatch{Line: n, Expected: want, Actual: got})
			}
		}
	}
	return ValidationResult{Valid: len(mismatches) == 0, Mismatches: mismatches}
}
