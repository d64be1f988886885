package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	lex, err := LoadDefaultLexicon()
	require.NoError(t, err)
	return NewNormalizer(lex)
}

func TestNormalize_Empty(t *testing.T) {
	n := newTestNormalizer(t)
	assert.Equal(t, "", n.Normalize(""))
	assert.Equal(t, "", n.Normalize("   "))
	assert.Equal(t, "", n.Normalize("!!! ???"))
}

func TestNormalize_Pipeline(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercase and punctuation", "Verstappen took pole position, what a fantastic qualifying!", "verstappen took pole position what a fantastic qualifying"},
		{"urls", "Check https://x.com/abc NOW and http://f1.com", "check now and"},
		{"markdown links", "see [this thread](https://reddit.com/x) and [deleted] ok", "see and ok"},
		{"expansion", "DNF again for Checo", "did not finish again for checo"},
		{"longest expansion first", "vsc deployed then sc", "virtual safety car deployed then safety car"},
		{"expansion revealed by punctuation", "another d.n.f", "another did not finish"},
		{"pictographs", "what a race 🔥🔥🔥", "what a race fire fire fire"},
		{"chequered flag", "🏁 finally", "chequered flag finally"},
		{"elongation", "sooooo goooood", "so god"},
		{"digits keep", "It's a 1-2 for Ferrari!!!", "its a 12 for ferrari"},
		{"whitespace", "  lots \n\t of   space  ", "lots of space"},
		{"no-break space", "great\u00a0race", "great race"},
		{"em space and vertical tab", "pole\u2003position\vin qualifying", "pole position in qualifying"},
		{"url with parentheses", "see https://en.wikipedia.org/wiki/Crash_(disaster) wow", "see wow"},
		{"markdown link with bare url target", "[crash](https://x.com/a_(b)) nice", "nice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw))
		})
	}
}

func TestNormalize_PositionShorthand(t *testing.T) {
	n := newTestNormalizer(t)

	assert.Contains(t, n.Normalize("p3"), "3rd place")
	assert.Contains(t, n.Normalize("P11"), "11th place")
	assert.Contains(t, n.Normalize("p1"), "1st place")
	assert.Contains(t, n.Normalize("started p-3"), "3rd place")
	assert.Contains(t, n.Normalize("finished P 10 today"), "10th place")
	assert.Contains(t, n.Normalize("P12 again"), "12th place")
	assert.Contains(t, n.Normalize("p21"), "21st place")
	assert.Contains(t, n.Normalize("p22"), "22nd place")
	assert.Contains(t, n.Normalize("from p.2 to p1"), "2nd place to 1st place")

	assert.Equal(t, "p100", n.Normalize("p100"))
	assert.Equal(t, "top10 finish", n.Normalize("top10 finish"))
	assert.Equal(t, "pp1", n.Normalize("pp1"))
}

func TestOrdinal(t *testing.T) {
	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th",
		11: "11th", 12: "12th", 13: "13th", 20: "20th",
		21: "21st", 22: "22nd", 23: "23rd", 111: "111th", 101: "101st",
	}
	for in, want := range tests {
		assert.Equal(t, want, Ordinal(in), "ordinal of %d", in)
	}
}

func TestNormalize_Elongation(t *testing.T) {
	n := newTestNormalizer(t)
	assert.Equal(t, n.Normalize("so good"), n.Normalize("soooo good"))
	assert.Equal(t, "so good", n.Normalize("soooo good"))
	assert.Equal(t, "so", n.Normalize("so!o!o"))
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(t)

	samples := []string{
		"Verstappen took pole position, what a fantastic qualifying!",
		"DNF for Leclerc?!?! The strategy was TERRIBLE... again",
		"p.1 -> p 1000 -> P-3 🔥🔥 [link](http://x.y) [removed]",
		"d.n.f d n f dnnnf sooo!o!o good",
		"VSC, SC, DRS train, quali and FP1/FP2 madness 🏎️‍💨",
		"ÉLÉGANT overtake by Pérez on lap 12 of 57",
		"1111 2222 aaaa",
		"",
	}

	for _, s := range samples {
		once := n.Normalize(s)
		assert.Equal(t, once, n.Normalize(once), "input %q", s)
	}
}

func TestCollapseElongation(t *testing.T) {
	assert.Equal(t, "a", collapseElongation("aaa"))
	assert.Equal(t, "aa", collapseElongation("aa"))
	assert.Equal(t, "ab", collapseElongation("aaabbbb"))
	assert.Equal(t, "", collapseElongation(""))
}

func TestNormalize_UnicodeSpaceKeepsLexiconMatch(t *testing.T) {
	lex, err := LoadDefaultLexicon()
	require.NoError(t, err)
	n := NewNormalizer(lex)

	match := lex.ScoreText(n.Normalize("Pole\u00a0position in qualifying"))
	assert.Contains(t, match.MatchedKeywords, "pole position")
}
