package common

import "strings"

// TruncateUTF8 drops invalid UTF-8 from s and shortens it to at most limit bytes
// without splitting a rune. Client supplied strings go through it before they
// reach a varchar column.
func TruncateUTF8(s string, limit int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	for limit > 0 && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit]
}
