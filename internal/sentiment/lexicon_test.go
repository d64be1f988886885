package sentiment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spacesedan/racepulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultLexicon(t *testing.T) *Lexicon {
	t.Helper()
	lex, err := LoadDefaultLexicon()
	require.NoError(t, err)
	return lex
}

func TestLoadDefaultLexicon(t *testing.T) {
	lex := defaultLexicon(t)

	assert.Equal(t, "did not finish", lex.Expansions()["dnf"])

	entry, ok := lex.Term("pole position")
	require.True(t, ok)
	assert.Greater(t, entry.Weight, 0.0)
	assert.Equal(t, models.Positive, entry.Category)
	assert.Equal(t, "achievement", entry.Group)

	_, ok = lex.ContextTerm("strategy")
	assert.True(t, ok)
	_, ok = lex.Term("strategy")
	assert.False(t, ok)

	assert.Contains(t, lex.Participants(), "verstappen")
	assert.Contains(t, lex.Participants(), "red bull")
}

func TestExpansionKeys_LongestFirst(t *testing.T) {
	keys := defaultLexicon(t).ExpansionKeys()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		assert.GreaterOrEqual(t, len(keys[i-1]), len(keys[i]))
	}
}

func TestScoreText_MultiWordTerms(t *testing.T) {
	lex := defaultLexicon(t)

	match := lex.ScoreText("verstappen took pole position what a fantastic qualifying")

	assert.ElementsMatch(t, []string{"pole position", "qualifying"}, match.MatchedKeywords)
	assert.InDelta(t, (0.8+0.5)/2, match.Adjustment, 1e-12)
}

func TestScoreText_NoMatch(t *testing.T) {
	lex := defaultLexicon(t)

	match := lex.ScoreText("the weather was lovely today")
	assert.Empty(t, match.MatchedKeywords)
	assert.Equal(t, 0.0, match.Adjustment)

	assert.Equal(t, LexiconMatch{}, lex.ScoreText(""))
}

func TestScoreText_RepeatedTermsCountEachOccurrence(t *testing.T) {
	lex := defaultLexicon(t)

	match := lex.ScoreText("podium podium crash")
	assert.Equal(t, []string{"podium", "crash"}, match.MatchedKeywords)
	assert.InDelta(t, (0.6+0.6-0.6)/3, match.Adjustment, 1e-12)
}

func TestScoreText_ContextTerms(t *testing.T) {
	lex := defaultLexicon(t)

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"positive marker", "great strategy call", 0.2},
		{"negative marker", "terrible strategy from them", -0.2},
		{"both markers", "great strategy but a terrible result", 0.0},
		{"no markers", "the strategy was to stop once", 0.0},
		{"marker anywhere in text", "safety car came out and we were lucky", -0.1 + 0.2},
		{"negative default shifted down", "the safety car ruined it", -0.1 - 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := lex.ScoreText(tt.text)
			require.Len(t, match.MatchedKeywords, 1)
			assert.InDelta(t, tt.want, match.Adjustment, 1e-12)
		})
	}
}

func TestContextTerm_ResolveClamps(t *testing.T) {
	ct := ContextTerm{
		Term:            "rain",
		DefaultWeight:   0.9,
		PositiveMarkers: []string{"fun"},
		NegativeMarkers: []string{"chaos"},
	}
	assert.Equal(t, 1.0, ct.Resolve(" rain is fun "))

	ct.DefaultWeight = -0.95
	assert.Equal(t, -1.0, ct.Resolve(" rain chaos "))
	assert.Equal(t, -0.95, ct.Resolve(" rain chaos and fun "))
}

func TestScoreText_Deterministic(t *testing.T) {
	lex := defaultLexicon(t)
	text := "did not finish after a slow pit stop and a penalty but the strategy was genius"

	first := lex.ScoreText(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, lex.ScoreText(text))
	}
}

func TestParseLexicon_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"weight out of range", `
sentiment_terms:
  - { term: win, weight: 1.5, category: POSITIVE }
`},
		{"unknown category", `
sentiment_terms:
  - { term: win, weight: 0.5, category: achievement }
`},
		{"lowercase category", `
sentiment_terms:
  - { term: win, weight: 0.5, category: positive }
`},
		{"unknown group", `
sentiment_terms:
  - { term: win, weight: 0.5, category: POSITIVE, group: vibes }
`},
		{"term not normalized", `
sentiment_terms:
  - { term: "Pole Position", weight: 0.5, category: POSITIVE }
`},
		{"plain and context overlap", `
sentiment_terms:
  - { term: strategy, weight: 0.1, category: POSITIVE }
context_terms:
  - { term: strategy, default_weight: 0.0, positive_markers: [good], negative_markers: [bad] }
`},
		{"expansion expands again", `
expansions:
  sc: safety car
  car: automobile
  x: safety sc
`},
		{"elongated expansion", `
expansions:
  zz: zzzz
`},
		{"malformed yaml", `sentiment_terms: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLexicon([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLexicon)
		})
	}
}

func TestLoadLexicon_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
expansions:
  ot: overtake
sentiment_terms:
  - { term: overtake, weight: 0.4, category: POSITIVE }
participants: [senna]
`), 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ot": "overtake"}, lex.Expansions())
	assert.Equal(t, []string{"senna"}, lex.Participants())

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := LoadLexicon("")
	require.NoError(t, err)
	_, ok := def.Term("podium")
	assert.True(t, ok)
}

func TestParseLexicon_PolarityCategories(t *testing.T) {
	lex, err := ParseLexicon([]byte(`
sentiment_terms:
  - { term: podium, weight: 0.6, category: POSITIVE }
  - { term: crash, weight: -0.6, category: NEGATIVE, group: incident }
  - { term: lap, weight: 0, category: NEUTRAL }
`))
	require.NoError(t, err)

	podium, ok := lex.Term("podium")
	require.True(t, ok)
	assert.Equal(t, models.Positive, podium.Category)
	assert.Empty(t, podium.Group)

	crash, ok := lex.Term("crash")
	require.True(t, ok)
	assert.Equal(t, models.Negative, crash.Category)
	assert.Equal(t, "incident", crash.Group)

	lap, ok := lex.Term("lap")
	require.True(t, ok)
	assert.Equal(t, models.Neutral, lap.Category)
}
