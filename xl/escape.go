package xl

import "unicode/utf8"

// appendEscaped appends s to dst with the five predefined XML entities
// replaced. Characters that XML 1.0 cannot carry are dropped.
func appendEscaped(dst []byte, s string) []byte {
	last := 0
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		var esc string
		switch r {
		case '&':
			esc = "&amp;"
		case '<':
			esc = "&lt;"
		case '>':
			esc = "&gt;"
		case '\'':
			esc = "&apos;"
		case '"':
			esc = "&quot;"
		default:
			if isXMLChar(r) && !(r == utf8.RuneError && width == 1) {
				i += width
				continue
			}
		}
		dst = append(dst, s[last:i]...)
		dst = append(dst, esc...)
		i += width
		last = i
	}
	return append(dst, s[last:]...)
}

func escapeXML(s string) string {
	return string(appendEscaped(make([]byte, 0, len(s)), s))
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// xmlText returns s without the characters XML 1.0 cannot carry or
// invalid UTF-8. Text handed to srw goes through it, as srw only escapes
// markup.
func xmlText(s string) string {
	var dst []byte
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		ok := isXMLChar(r) && !(r == utf8.RuneError && width == 1)
		switch {
		case !ok && dst == nil:
			dst = append(make([]byte, 0, len(s)), s[:i]...)
		case ok && dst != nil:
			dst = append(dst, s[i:i+width]...)
		}
		i += width
	}
	if dst == nil {
		return s
	}
	return string(dst)
}
