package verdict

import "strings"

const lineTrailingSpace = " \t\r\v\f"

// Normalize strips trailing whitespace from every line and then a single
// trailing newline. Everything else, blank lines and inner spacing
// included, is kept.
func Normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, lineTrailingSpace)
	}
	return strings.TrimSuffix(strings.Join(lines, "\n"), "\n")
}

// Equal reports whether two outputs are the same after normalization.
func Equal(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}
