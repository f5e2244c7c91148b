package tools

import "fmt"

// Tail returns the last max bytes of s. When truncation happens, the tail
// is prefixed with a length hint so readers know how much was dropped.
func Tail(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return fmt.Sprintf("(showing last %d of %d chars)\n%s", max, len(s), s[len(s)-max:])
}
