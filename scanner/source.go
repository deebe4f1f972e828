package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSourceLines bounds an excerpt when the end line is unknown.
const maxSourceLines = 50

// ReadSource returns lines line..endLine (1-based, inclusive) of a file
// under root. With no end line it returns at most maxSourceLines lines.
func ReadSource(root, relPath string, line, endLine int) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("no file path")
	}
	if line <= 0 {
		return "", fmt.Errorf("%s: no line information", relPath)
	}

	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", relPath, err)
	}
	lines := strings.Split(string(content), "\n")

	start := line - 1
	if start >= len(lines) {
		return "", fmt.Errorf("%s: line %d past end of file", relPath, line)
	}
	end := endLine
	if end < line {
		end = start + maxSourceLines
	}
	if end > len(lines) {
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n"), nil
}
