package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffFields(t *testing.T) {
	current := map[string]any{
		"synopsis": "old",
		"tags":     []any{"a", "b"},
		"order":    float64(2),
	}

	t.Run("identical input yields nil", func(t *testing.T) {
		assert.Nil(t, DiffFields(current, current))
		assert.Nil(t, DiffFields(map[string]any{}, current))
		assert.Nil(t, DiffFields(map[string]any{"order": 2}, current), "int and float64 encode the same")
	})

	t.Run("changed and absent keys", func(t *testing.T) {
		d := DiffFields(map[string]any{"synopsis": "new", "theme": "loss", "order": 2}, current)
		require.NotNil(t, d)
		assert.Equal(t, map[string]any{"synopsis": "new", "theme": "loss"}, d.Changed)
		assert.Equal(t, map[string]any{"synopsis": "old", "theme": nil}, d.Original)
	})

	t.Run("absent key with nil value still differs", func(t *testing.T) {
		d := DiffFields(map[string]any{"notes": nil}, current)
		require.NotNil(t, d)
		assert.Contains(t, d.Changed, "notes")
	})
}

func TestDetectConflictFields(t *testing.T) {
	tests := []struct {
		name     string
		original map[string]any
		current  map[string]any
		want     []string
	}{
		{
			name:     "all equal",
			original: map[string]any{"synopsis": "old", "tags": []any{"x"}},
			current:  map[string]any{"synopsis": "old", "tags": []any{"x"}, "theme": "new"},
			want:     []string{},
		},
		{
			name:     "changed field",
			original: map[string]any{"synopsis": "old"},
			current:  map[string]any{"synopsis": "third"},
			want:     []string{"synopsis"},
		},
		{
			name:     "array order matters",
			original: map[string]any{"tags": []any{"a", "b"}},
			current:  map[string]any{"tags": []any{"b", "a"}},
			want:     []string{"tags"},
		},
		{
			name:     "nested objects ignore key order",
			original: map[string]any{"meta": map[string]any{"a": 1, "b": 2}},
			current:  map[string]any{"meta": map[string]any{"b": 2, "a": 1}},
			want:     []string{},
		},
		{
			name:     "field removed",
			original: map[string]any{"b": "x", "a": "y"},
			current:  map[string]any{},
			want:     []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectConflictFields(tt.original, tt.current))
		})
	}
}

func TestDetectLineEditsConflict(t *testing.T) {
	original := map[string]any{"line_1": "A", "line_2": "B", "line_3": "C"}

	assert.Empty(t, DetectLineEditsConflict(original, "A\nB\nC"))
	assert.Equal(t, []string{"line_2"}, DetectLineEditsConflict(original, "A\nX\nC"))
	assert.Equal(t, []string{"line_3"}, DetectLineEditsConflict(original, "A\nB"), "document shrank")
	assert.Empty(t, DetectLineEditsConflict(map[string]any{"title": "x"}, "anything"), "non-line keys are ignored")
	assert.Equal(t, []string{"line_2", "line_10"},
		DetectLineEditsConflict(map[string]any{"line_10": "J", "line_2": "B"}, "A\nZ\nC"))
}

func TestParseLineKey(t *testing.T) {
	n, ok := ParseLineKey("line_12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	for _, key := range []string{"line_", "line_x", "synopsis", "12"} {
		_, ok := ParseLineKey(key)
		assert.False(t, ok, key)
	}
}

func TestLineSnapshot(t *testing.T) {
	edits := []storeLineEdit{
		{StartLine: 2, EndLine: 3, NewText: "x"},
		{StartLine: 5, EndLine: 4, NewText: "ins"},
		{StartLine: 9, EndLine: 9, NewText: "past end"},
	}
	snap := LineSnapshot([]string{"A", "B", "C", "D"}, edits)
	assert.Equal(t, map[string]any{"line_2": "B", "line_3": "C"}, snap)
}

func TestDescribeConflicts(t *testing.T) {
	assert.Empty(t, DescribeConflicts(nil))
	assert.Contains(t, DescribeConflicts([]string{"synopsis", "title"}), "synopsis, title")
}
