package sentiment

const (
	baseShare    = 0.7
	lexiconShare = 0.3
)

// Adjust blends a generic polarity score with the domain lexicon. Texts with
// no domain terms keep their base score exactly.
func Adjust(base float64, match LexiconMatch) float64 {
	if len(match.MatchedKeywords) == 0 {
		return base
	}
	return base*baseShare + match.Adjustment*lexiconShare
}
