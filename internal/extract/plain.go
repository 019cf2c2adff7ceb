package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string with a leading BOM removed and line
// endings normalized to \n. Invalid UTF-8 is replaced with U+FFFD.
func extractPlain(content []byte) string {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
