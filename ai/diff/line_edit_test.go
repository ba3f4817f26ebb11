package diff

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/inkwell/store"
)

type storeLineEdit = store.LineEdit

func strPtr(s string) *string { return &s }

func randomText(r *rand.Rand) string {
	n := 1 + r.Intn(12)
	lines := make([]string, n)
	for i := range lines {
		lines[i] = strings.Repeat(string(rune('a'+r.Intn(26))), r.Intn(4))
	}
	return strings.Join(lines, "\n")
}

func TestApplyLineEdits_Empty(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		text := randomText(r)
		assert.Equal(t, text, ApplyLineEdits(text, nil))
		assert.Equal(t, text, ApplyLineEdits(text, []store.LineEdit{}))
	}
}

func TestApplyLineEdits_ReplaceIsLocal(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		before := SplitLines(randomText(r))
		start := 1 + r.Intn(len(before))
		end := start + r.Intn(len(before)-start+1)
		edit := store.LineEdit{StartLine: start, EndLine: end, NewText: "R1\nR2"}

		after := SplitLines(ApplyLineEdits(strings.Join(before, "\n"), []store.LineEdit{edit}))

		assert.Equal(t, before[:start-1], after[:start-1], "prefix untouched")
		assert.Equal(t, []string{"R1", "R2"}, after[start-1:start+1])
		assert.Equal(t, before[end:], after[start+1:], "suffix untouched")
	}
}

func TestApplyLineEdits_Insertion(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		before := SplitLines(randomText(r))
		k := 1 + r.Intn(len(before)+1)
		edit := store.LineEdit{StartLine: k, EndLine: k - 1, NewText: "first\nsecond"}

		after := SplitLines(ApplyLineEdits(strings.Join(before, "\n"), []store.LineEdit{edit}))

		assert.Len(t, after, len(before)+2)
		assert.Equal(t, "first", after[k-1])
		assert.Equal(t, before[:k-1], after[:k-1])
		assert.Equal(t, before[k-1:], after[k+1:])
	}
}

func TestApplyLineEdits_Deletion(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 200; i++ {
		before := SplitLines(randomText(r))
		if len(before) < 2 {
			continue
		}
		a := 1 + r.Intn(len(before)-1)
		b := a + r.Intn(len(before)-a)
		edit := store.LineEdit{StartLine: a, EndLine: b, NewText: ""}

		after := SplitLines(ApplyLineEdits(strings.Join(before, "\n"), []store.LineEdit{edit}))

		assert.Len(t, after, len(before)-(b-a+1))
	}
}

func TestApplyLineEdits_Cases(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		edits []store.LineEdit
		want  string
	}{
		{
			name:  "multiple edits use original numbering",
			text:  "A\nB\nC\nD",
			edits: []store.LineEdit{{StartLine: 1, EndLine: 1, NewText: "a1\na2"}, {StartLine: 3, EndLine: 3, NewText: "c"}},
			want:  "a1\na2\nB\nc\nD",
		},
		{
			name:  "insert at end",
			text:  "A\nB",
			edits: []store.LineEdit{{StartLine: 3, EndLine: 2, NewText: "C"}},
			want:  "A\nB\nC",
		},
		{
			name:  "delete then insert elsewhere",
			text:  "A\nB\nC",
			edits: []store.LineEdit{{StartLine: 2, EndLine: 2, NewText: ""}, {StartLine: 1, EndLine: 0, NewText: "top"}},
			want:  "top\nA\nC",
		},
		{
			name:  "range past end is clamped",
			text:  "A\nB",
			edits: []store.LineEdit{{StartLine: 2, EndLine: 9, NewText: "Z"}},
			want:  "A\nZ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyLineEdits(tt.text, tt.edits))
		})
	}
}

func TestValidateLineEditsConsistency(t *testing.T) {
	lines := []string{"A", "B", "C"}

	res := ValidateLineEditsConsistency(lines, []store.LineEdit{
		{StartLine: 2, EndLine: 3, NewText: "x", ExpectedText: strPtr("B\nC")},
		{StartLine: 1, EndLine: 1, NewText: "no expectation"},
		{StartLine: 2, EndLine: 1, NewText: "insertion", ExpectedText: strPtr("ignored")},
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Mismatches)

	res = ValidateLineEditsConsistency(lines, []store.LineEdit{
		{StartLine: 2, EndLine: 2, NewText: "x", ExpectedText: strPtr("Q")},
		{StartLine: 3, EndLine: 4, NewText: "y", ExpectedText: strPtr("C\nD")},
	})
	assert.False(t, res.Valid)
	assert.Equal(t, []Mismatch{
		{Line: 2, Expected: "Q", Actual: "B"},
		{Line: 4, Expected: "D", Actual: ""},
	}, res.Mismatches)
}

func TestNumberLines(t *testing.T) {
	assert.Equal(t, "", NumberLines(""))
	assert.Equal(t, "1| a\n2| \n3| c", NumberLines("a\n\nc"))
}
