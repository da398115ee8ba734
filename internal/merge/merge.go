// Package merge produces the annotated view of a source file by inserting AGL
// notes into the raw text.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

// Annotations returns rawText with every note inserted on a new line
// immediately before its 1-based target line, re-indented to match that line.
// Notes are applied in descending line order so earlier insertions never shift
// the positions of notes still to be applied. Notes whose target line falls
// outside the current text are skipped; each skip is reported in the returned
// warnings. The input is never mutated.
func Annotations(rawText string, funcs []storage.FuncInfo) (string, []string) {
	notes := Flatten(funcs)
	if len(notes) == 0 {
		return rawText, nil
	}

	lines := strings.Split(rawText, "\n")
	merged := make([]string, len(lines))
	copy(merged, lines)

	var warnings []string
	for _, note := range notes {
		insertPos := note.Line - 1 // to 0-based
		if insertPos < 0 || insertPos >= len(merged) {
			warnings = append(warnings, fmt.Sprintf("invalid line %d: annotation skipped", note.Line))
			continue
		}

		aligned := indentOf(merged[insertPos]) + strings.TrimSpace(note.Text)
		merged = append(merged[:insertPos], append([]string{aligned}, merged[insertPos:]...)...)
	}

	return strings.Join(merged, "\n"), warnings
}

// Flatten collects every note across all functions into one list sorted by
// target line descending.
func Flatten(funcs []storage.FuncInfo) []storage.AGL {
	var notes []storage.AGL
	for _, fn := range funcs {
		notes = append(notes, fn.AGLs...)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Line > notes[j].Line
	})
	return notes
}

// indentOf returns the leading whitespace of line
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
