package countries

import "strings"

// Normalize maps user text to its comparison key: surrounding whitespace
// trimmed, lowercased. Two guesses are equal iff their keys are equal.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
