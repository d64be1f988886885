package sentiment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	shortTextLength      = 10
	maxDigitGroups       = 3
	participantMentions  = 3
	emojiTokenRatioLimit = 0.3

	penaltyShortText      = -0.3
	penaltyManyNumbers    = -0.2
	penaltyLink           = -0.1
	penaltyManyMentions   = -0.15
	penaltyPunctuationRun = -0.1
	penaltyEmojiHeavy     = -0.2
)

var (
	digitGroupPattern     = regexp.MustCompile(`\d+`)
	punctuationRunPattern = regexp.MustCompile(`[!?]{2,}`)
	emojiShortcodePattern = regexp.MustCompile(`:\w+:`)
)

// ConfidenceValidator discounts scores for texts that look like noise: very
// short, number heavy, link posts, name dumps, shouting, or mostly emoji.
type ConfidenceValidator struct {
	participants *regexp.Regexp
}

func NewConfidenceValidator(lex *Lexicon) *ConfidenceValidator {
	cv := &ConfidenceValidator{}

	names := lex.Participants()
	if len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		cv.participants = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	return cv
}

// Validate returns the summed penalty for one item. It is always <= 0.
func (cv *ConfidenceValidator) Validate(raw, normalized string) float64 {
	penalty := 0.0

	if utf8.RuneCountInString(normalized) < shortTextLength {
		penalty += penaltyShortText
	}

	if len(digitGroupPattern.FindAllStringIndex(normalized, -1)) > maxDigitGroups {
		penalty += penaltyManyNumbers
	}

	if strings.Contains(raw, "http") {
		penalty += penaltyLink
	}

	if cv.participants != nil && len(cv.participants.FindAllStringIndex(raw, -1)) >= participantMentions {
		penalty += penaltyManyMentions
	}

	if punctuationRunPattern.MatchString(raw) {
		penalty += penaltyPunctuationRun
	}

	if n := utf8.RuneCountInString(raw); n > 0 {
		shortcodes := len(emojiShortcodePattern.FindAllStringIndex(raw, -1))
		if float64(shortcodes)/float64(n) > emojiTokenRatioLimit {
			penalty += penaltyEmojiHeavy
		}
	}

	return penalty
}

// ApplyPenalty shrinks score toward zero by the penalty fraction.
func ApplyPenalty(score, penalty float64) float64 {
	return score * (1 + penalty)
}
