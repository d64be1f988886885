package sentiment

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

const (
	variationSelector16 = '\uFE0F'
	zeroWidthJoiner     = '\u200D'
)

// replacePictographs swaps every pictographic symbol for its Unicode name
// written as plain lowercase words, e.g. "🏁" -> " chequered flag ".
func replacePictographs(text string) string {
	if !hasSymbol(text) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 16)

	for _, r := range text {
		switch {
		case r == variationSelector16 || r == zeroWidthJoiner:
			b.WriteByte(' ')
		case unicode.Is(unicode.So, r):
			b.WriteByte(' ')
			b.WriteString(emojiWords(r))
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func emojiWords(r rune) string {
	name := runenames.Name(r)
	if name == "" {
		return ""
	}
	name = strings.ToLower(name)
	return strings.NewReplacer("-", " ", "_", " ").Replace(name)
}

func hasSymbol(text string) bool {
	for _, r := range text {
		if r > unicode.MaxASCII && (unicode.Is(unicode.So, r) || r == variationSelector16 || r == zeroWidthJoiner) {
			return true
		}
	}
	return false
}
