package views

import "strings"

// sanitizeForTerminal drops codepoints tcell renders badly: skin tone
// modifiers, the zero width joiner and variation selectors. Joined emoji
// sequences collapse to their base characters.
func sanitizeForTerminal(s string) string {
	if strings.IndexFunc(s, dropRune) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func dropRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
