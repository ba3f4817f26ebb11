// Package diff computes field-level and line-level differences between
// content snapshots and applies line-range edits to text. It performs no I/O.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hrygo/inkwell/store"
)

// FieldDiff holds the changed fields of a candidate and their current values.
type FieldDiff struct {
	Changed  map[string]any
	Original map[string]any
}

// DiffFields returns the keys of candidate whose value differs from current,
// including keys current does not have. It returns nil when nothing differs.
func DiffFields(candidate, current map[string]any) *FieldDiff {
	var d *FieldDiff
	for key, value := range candidate {
		old, ok := current[key]
		if ok && JSONEqual(value, old) {
			continue
		}
		if d == nil {
			d = &FieldDiff{Changed: map[string]any{}, Original: map[string]any{}}
		}
		d.Changed[key] = value
		d.Original[key] = old
	}
	return d
}

// DetectConflictFields returns, sorted, the keys of original whose value no
// longer JSON-equals the value in current. Arrays compare in order.
func DetectConflictFields(original, current map[string]any) []string {
	conflicts := []string{}
	for key, value := range original {
		if !JSONEqual(value, current[key]) {
			conflicts = append(conflicts, key)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// DetectLineEditsConflict compares every line_<n> snapshot in original with
// line n of currentText. Lines beyond the current end always conflict.
// Keys are returned in ascending line order.
func DetectLineEditsConflict(original map[string]any, currentText string) []string {
	lines := SplitLines(currentText)
	type hit struct {
		key  string
		line int
	}
	var hits []hit
	for key, value := range original {
		n, ok := ParseLineKey(key)
		if !ok {
			continue
		}
		stored, _ := value.(string)
		if n < 1 || n > len(lines) || lines[n-1] != stored {
			hits = append(hits, hit{key: key, line: n})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].line < hits[j].line })

	conflicts := make([]string, 0, len(hits))
	for _, h := range hits {
		conflicts = append(conflicts, h.key)
	}
	return conflicts
}

// ParseLineKey extracts n from a "line_<n>" key.
func ParseLineKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "line_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// JSONEqual reports whether a and b encode to the same JSON document.
// Object keys are order-insensitive, array elements are not.
func JSONEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// DescribeConflicts renders a conflict set for display.
func DescribeConflicts(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fmt.Sprintf("content changed since the proposal was made: %s", strings.Join(fields, ", "))
}

// LineSnapshot records the current text of every line an edit touches,
// keyed by store.LineKey. Pure insertions record nothing.
func LineSnapshot(currentLines []string, edits []store.LineEdit) map[string]any {
	snapshot := map[string]any{}
	for _, e := range edits {
		if e.IsInsertion() {
			continue
		}
		for n := e.StartLine; n <= e.EndLine; n++ {
			if n >= 1 && n <= len(currentLines) {
				snapshot[store.LineKey(n)] = currentLines[n-1]
			}
		}
	}
	return snapshot
}
