package merge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

func TestAnnotations_InsertBeforeTargetLine(t *testing.T) {
	raw := "def greet():\n    print('hi')\n    return True"
	funcs := []storage.FuncInfo{
		{FuncName: "greet", AGLs: []storage.AGL{
			{Line: 2, Text: "#> 1. show a greeting"},
			{Line: 3, Text: "#> 2. report success"},
		}},
	}

	merged, warnings := Annotations(raw, funcs)
	assert.Empty(t, warnings)

	lines := strings.Split(merged, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "def greet():", lines[0])
	assert.Equal(t, "    #> 1. show a greeting", lines[1])
	assert.Equal(t, "    print('hi')", lines[2])
	assert.Equal(t, "    #> 2. report success", lines[3])
	assert.Equal(t, "    return True", lines[4])
}

func TestAnnotations_DescendingOrderKeepsTargetsStable(t *testing.T) {
	raw := "a\nb\nc\nd\ne"
	// Deliberately ascending input; Flatten must reorder before insertion
	funcs := []storage.FuncInfo{
		{FuncName: "f", AGLs: []storage.AGL{
			{Line: 2, Text: "#> second"},
			{Line: 5, Text: "#> fifth"},
		}},
	}

	merged, warnings := Annotations(raw, funcs)
	assert.Empty(t, warnings)

	lines := strings.Split(merged, "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "#> second", lines[1])
	assert.Equal(t, "b", lines[2])
	assert.Equal(t, "#> fifth", lines[5])
	assert.Equal(t, "e", lines[6])
}

// Negative control: inserting the same notes in ascending order shifts every
// later target by the number of notes already inserted, producing a different
// (wrong) text. This is the property the descending sort protects.
func TestAnnotations_AscendingOrderWouldMisplaceNotes(t *testing.T) {
	raw := "a\nb\nc\nd\ne"
	notes := []storage.AGL{
		{Line: 2, Text: "#> second"},
		{Line: 5, Text: "#> fifth"},
	}

	ascending := strings.Split(raw, "\n")
	for _, note := range notes { // ascending application, deliberately naive
		pos := note.Line - 1
		ascending = append(ascending[:pos], append([]string{note.Text}, ascending[pos:]...)...)
	}

	correct, _ := Annotations(raw, []storage.FuncInfo{{FuncName: "f", AGLs: notes}})
	assert.NotEqual(t, correct, strings.Join(ascending, "\n"))
	// The ascending pass lands the second note before "d" instead of "e"
	assert.Equal(t, "#> fifth", ascending[5])
	assert.Equal(t, "d", ascending[6])
}

func TestAnnotations_OutOfRangeSkipped(t *testing.T) {
	raw := "a\nb"
	funcs := []storage.FuncInfo{
		{FuncName: "f", AGLs: []storage.AGL{
			{Line: 0, Text: "#> zero"},
			{Line: 99, Text: "#> far"},
			{Line: 1, Text: "#> ok"},
		}},
	}

	merged, warnings := Annotations(raw, funcs)
	assert.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "invalid line 99")
	assert.Contains(t, warnings[1], "invalid line 0")

	lines := strings.Split(merged, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#> ok", lines[0])
}

func TestAnnotations_IndentCopiedFromTargetLine(t *testing.T) {
	raw := "def f():\n\t\tdeep = 1"
	funcs := []storage.FuncInfo{
		{FuncName: "f", AGLs: []storage.AGL{{Line: 2, Text: "  #> note  "}}},
	}

	merged, _ := Annotations(raw, funcs)
	lines := strings.Split(merged, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "\t\t#> note", lines[1])
}

func TestAnnotations_NoNotes(t *testing.T) {
	raw := "unchanged\ntext"

	merged, warnings := Annotations(raw, nil)
	assert.Equal(t, raw, merged)
	assert.Empty(t, warnings)

	merged, warnings = Annotations(raw, []storage.FuncInfo{{FuncName: "f", AGLs: []storage.AGL{}}})
	assert.Equal(t, raw, merged)
	assert.Empty(t, warnings)
}

func TestAnnotations_InputNotMutated(t *testing.T) {
	raw := "a\nb\nc"
	funcs := []storage.FuncInfo{
		{FuncName: "f", AGLs: []storage.AGL{{Line: 2, Text: "#> note"}}},
	}

	first, _ := Annotations(raw, funcs)
	second, _ := Annotations(raw, funcs)
	assert.Equal(t, first, second)
	assert.Equal(t, "a\nb\nc", raw)
}

func TestFlatten_SortsDescendingAcrossFuncs(t *testing.T) {
	funcs := []storage.FuncInfo{
		{FuncName: "a", AGLs: []storage.AGL{{Line: 3, Text: "three"}, {Line: 10, Text: "ten"}}},
		{FuncName: "b", AGLs: []storage.AGL{{Line: 7, Text: "seven"}}},
	}

	notes := Flatten(funcs)
	require.Len(t, notes, 3)
	assert.Equal(t, 10, notes[0].Line)
	assert.Equal(t, 7, notes[1].Line)
	assert.Equal(t, 3, notes[2].Line)
}
