package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// binarySampleSize bounds how much of a file the binary heuristic inspects
const binarySampleSize = 8000

// languageByExtension maps file extensions to display language tags.
// Unknown extensions fall back to the extension itself.
var languageByExtension = map[string]string{
	"ts":   "typescript",
	"tsx":  "typescript",
	"js":   "javascript",
	"jsx":  "javascript",
	"py":   "python",
	"java": "java",
	"cpp":  "cpp",
	"cc":   "cpp",
	"c":    "c",
	"cs":   "csharp",
	"go":   "go",
	"rb":   "ruby",
	"rs":   "rust",
	"php":  "php",
	"md":   "markdown",
	"sh":   "shell",
}

// HashBytes computes the SHA-256 hex digest of file content. This digest is
// the sole signal used to detect content changes; mod time is metadata only.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// IsBinary reports whether content looks binary. The heuristic checks a
// bounded sample for NUL bytes or bytes outside the ASCII range; it only
// affects display, never annotation eligibility.
func IsBinary(content []byte) bool {
	sample := content
	if len(sample) > binarySampleSize {
		sample = sample[:binarySampleSize]
	}
	for _, b := range sample {
		if b == 0 || b > 127 {
			return true
		}
	}
	return false
}

// Extension returns the lowercased extension of path without the leading dot
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Language returns the display language tag for a file path
func Language(path string) string {
	ext := Extension(path)
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return ext
}

// CountLines counts content lines after trimming surrounding whitespace
func CountLines(content string) int {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "\n") + 1
}
