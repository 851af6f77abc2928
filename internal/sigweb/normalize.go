package sigweb

import "strings"

// Unknown stands in for values that could not be read.
const Unknown = "unknown"

// NormalizeText trims s and removes one layer of matching double or single
// quotes. A lone quote character normalizes to "".
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '"' && first != '\'') {
		return s
	}
	if len(s) == 1 {
		return ""
	}
	return s[1 : len(s)-1]
}
