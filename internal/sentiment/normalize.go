package sentiment

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// settlePasses bounds how often the tail of the pipeline is re-run. Removing
// punctuation can expose new abbreviations, elongations or position
// shorthand ("d.n.f", "so!o!o"), so the tail runs until the text is stable.
const settlePasses = 5

var (
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	bracketPattern      = regexp.MustCompile(`\[[^\]]*\]`)
	disallowedPattern   = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// Normalizer turns raw post text into the canonical form every scorer and
// the lexicon work on. It is safe for concurrent use.
type Normalizer struct {
	expansions       map[string]string
	expansionPattern *regexp.Regexp
}

func NewNormalizer(lex *Lexicon) *Normalizer {
	n := &Normalizer{expansions: lex.Expansions()}

	keys := lex.ExpansionKeys()
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = regexp.QuoteMeta(k)
		}
		// Alternation is leftmost-first, so longer keys are listed first.
		n.expansionPattern = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	return n
}

// Normalize never fails. Any panic while cleaning a text is logged and the
// text degrades to "".
func (n *Normalizer) Normalize(raw string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("[Normalizer] Failed to normalize text, using empty string",
				slog.Any("panic", r),
				slog.Int("raw_length", len(raw)))
			out = ""
		}
	}()

	if raw == "" {
		return ""
	}

	text := strings.Map(unifySpace, strings.ToLower(raw))
	// Links go before bare URLs so a target is never split from its label.
	text = markdownLinkPattern.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, " ")
	text = bracketPattern.ReplaceAllString(text, " ")
	text = replacePictographs(text)

	for i := 0; i < settlePasses; i++ {
		next := n.tail(text)
		if next == text {
			break
		}
		text = next
	}

	return text
}

// unifySpace turns every Unicode space (no-break, em space, vertical tab)
// into an ASCII space so words on either side stay apart.
func unifySpace(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}

func (n *Normalizer) tail(text string) string {
	text = n.expand(text)
	text = rewritePositions(text)
	text = collapseElongation(text)
	text = disallowedPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func (n *Normalizer) expand(text string) string {
	if n.expansionPattern == nil {
		return text
	}
	return n.expansionPattern.ReplaceAllStringFunc(text, func(m string) string {
		return n.expansions[m]
	})
}

// rewritePositions turns finishing-position shorthand into an ordinal
// phrase: "p1" -> "1st place", "p-3" -> "3rd place", "p 10" -> "10th place".
func rewritePositions(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		if text[i] != 'p' || (i > 0 && isAlnum(text[i-1])) {
			b.WriteByte(text[i])
			i++
			continue
		}

		j := i + 1
		if j < len(text) && (text[j] == ' ' || text[j] == '-') {
			j++
		}

		k := j
		for k < len(text) && k-j < 2 && isDigit(text[k]) {
			k++
		}

		if k == j || (k < len(text) && isAlnum(text[k])) {
			b.WriteByte(text[i])
			i++
			continue
		}

		pos, _ := strconv.Atoi(text[j:k])
		b.WriteString(Ordinal(pos))
		b.WriteString(" place")
		i = k
	}

	return b.String()
}

// Ordinal renders n with its English suffix. 11 through 20 (mod 100) always
// take "th".
func Ordinal(n int) string {
	suffix := "th"
	if mod := n % 100; mod < 11 || mod > 20 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// collapseElongation reduces any run of three or more identical runes to one.
func collapseElongation(text string) string {
	runes := []rune(text)
	if len(runes) < 3 {
		return text
	}

	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 3 {
			out = append(out, runes[i])
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}

	return string(out)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z')
}
