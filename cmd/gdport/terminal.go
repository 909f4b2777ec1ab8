package main

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal flattens control characters so file names and parse errors cannot
// move the cursor or break status lines.
func sanitizeForTerminal(input string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, input)
}
