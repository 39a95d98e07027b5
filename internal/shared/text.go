package shared

import "unicode/utf8"

// Truncate returns at most limit runes of s. It never splits a multi-byte rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
