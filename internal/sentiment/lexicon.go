package sentiment

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spacesedan/racepulse/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// ErrInvalidLexicon wraps every structural problem found while loading a
// lexicon file.
var ErrInvalidLexicon = errors.New("invalid lexicon")

const contextShift = 0.2

// LexiconEntry is a plain term. Category is the term's polarity; Group is the
// optional domain bucket it belongs to, e.g. "incident" or "strategy".
type LexiconEntry struct {
	Term     string                   `yaml:"term" validate:"required"`
	Weight   float64                  `yaml:"weight" validate:"gte=-1,lte=1"`
	Category models.SentimentCategory `yaml:"category" validate:"oneof=POSITIVE NEGATIVE NEUTRAL"`
	Group    string                   `yaml:"group" validate:"omitempty,oneof=achievement performance incident penalty reliability race_control strategy emotion"`
}

// ContextTerm has no fixed weight. It leans positive or negative depending on
// which marker phrases appear anywhere in the same text.
type ContextTerm struct {
	Term            string   `yaml:"term" validate:"required"`
	DefaultWeight   float64  `yaml:"default_weight" validate:"gte=-1,lte=1"`
	PositiveMarkers []string `yaml:"positive_markers" validate:"dive,required"`
	NegativeMarkers []string `yaml:"negative_markers" validate:"dive,required"`
}

type lexiconFile struct {
	Expansions     map[string]string `yaml:"expansions" validate:"dive,keys,required,endkeys,required"`
	SentimentTerms []LexiconEntry    `yaml:"sentiment_terms" validate:"dive"`
	ContextTerms   []ContextTerm     `yaml:"context_terms" validate:"dive"`
	Participants   []string          `yaml:"participants" validate:"dive,required"`
}

// Lexicon is immutable once loaded and safe for concurrent readers.
type Lexicon struct {
	expansions   map[string]string
	terms        map[string]LexiconEntry
	contextTerms map[string]ContextTerm
	participants []string
	maxTermWords int
}

// LexiconMatch is the result of scanning one normalized text.
type LexiconMatch struct {
	Adjustment      float64
	MatchedKeywords []string
}

var (
	normalizedTermPattern = regexp.MustCompile(`^[a-z0-9]+( [a-z0-9]+)*$`)
	lexiconValidate       = validator.New()
)

func LoadDefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads a lexicon from path, or the embedded default when path is
// empty.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return LoadDefaultLexicon()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[Lexicon] failed to read %s: %w", path, err)
	}
	return ParseLexicon(data)
}

func ParseLexicon(data []byte) (*Lexicon, error) {
	var file lexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("[Lexicon] %w: %v", ErrInvalidLexicon, err)
	}

	if err := lexiconValidate.Struct(file); err != nil {
		return nil, fmt.Errorf("[Lexicon] %w: %v", ErrInvalidLexicon, err)
	}

	lex := &Lexicon{
		expansions:   make(map[string]string, len(file.Expansions)),
		terms:        make(map[string]LexiconEntry, len(file.SentimentTerms)),
		contextTerms: make(map[string]ContextTerm, len(file.ContextTerms)),
		maxTermWords: 1,
	}

	for abbr, phrase := range file.Expansions {
		if !normalizedTermPattern.MatchString(abbr) || !normalizedTermPattern.MatchString(phrase) {
			return nil, fmt.Errorf("[Lexicon] %w: expansion %q -> %q is not in normalized form", ErrInvalidLexicon, abbr, phrase)
		}
		if hasTripleRun(phrase) {
			return nil, fmt.Errorf("[Lexicon] %w: expansion %q contains a run of 3+ identical characters", ErrInvalidLexicon, phrase)
		}
		lex.expansions[abbr] = phrase
	}
	for abbr := range lex.expansions {
		for _, phrase := range lex.expansions {
			if containsPhrase(" "+phrase+" ", abbr) {
				return nil, fmt.Errorf("[Lexicon] %w: expansion %q would be expanded again inside %q", ErrInvalidLexicon, abbr, phrase)
			}
		}
	}

	for _, entry := range file.SentimentTerms {
		if !normalizedTermPattern.MatchString(entry.Term) {
			return nil, fmt.Errorf("[Lexicon] %w: term %q is not in normalized form", ErrInvalidLexicon, entry.Term)
		}
		if _, dup := lex.terms[entry.Term]; dup {
			return nil, fmt.Errorf("[Lexicon] %w: duplicate term %q", ErrInvalidLexicon, entry.Term)
		}
		lex.terms[entry.Term] = entry
		lex.trackWords(entry.Term)
	}

	for _, ct := range file.ContextTerms {
		if !normalizedTermPattern.MatchString(ct.Term) {
			return nil, fmt.Errorf("[Lexicon] %w: context term %q is not in normalized form", ErrInvalidLexicon, ct.Term)
		}
		if _, clash := lex.terms[ct.Term]; clash {
			return nil, fmt.Errorf("[Lexicon] %w: %q is both a plain and a context term", ErrInvalidLexicon, ct.Term)
		}
		if _, dup := lex.contextTerms[ct.Term]; dup {
			return nil, fmt.Errorf("[Lexicon] %w: duplicate context term %q", ErrInvalidLexicon, ct.Term)
		}
		lex.contextTerms[ct.Term] = ct
		lex.trackWords(ct.Term)
	}

	for _, p := range file.Participants {
		lex.participants = append(lex.participants, strings.ToLower(strings.TrimSpace(p)))
	}

	return lex, nil
}

func (l *Lexicon) trackWords(term string) {
	if n := len(strings.Fields(term)); n > l.maxTermWords {
		l.maxTermWords = n
	}
}

// Expansions returns a copy of the abbreviation table.
func (l *Lexicon) Expansions() map[string]string {
	out := make(map[string]string, len(l.expansions))
	for k, v := range l.expansions {
		out[k] = v
	}
	return out
}

// ExpansionKeys returns abbreviations longest first, ties broken
// alphabetically.
func (l *Lexicon) ExpansionKeys() []string {
	keys := make([]string, 0, len(l.expansions))
	for k := range l.expansions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (l *Lexicon) Term(term string) (LexiconEntry, bool) {
	e, ok := l.terms[term]
	return e, ok
}

func (l *Lexicon) ContextTerm(term string) (ContextTerm, bool) {
	ct, ok := l.contextTerms[term]
	return ct, ok
}

func (l *Lexicon) Participants() []string {
	return append([]string(nil), l.participants...)
}

// ScoreText scans normalized text for domain terms. Multi-word terms win over
// any shorter term starting at the same token.
func (l *Lexicon) ScoreText(normalized string) LexiconMatch {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return LexiconMatch{}
	}

	padded := " " + strings.Join(tokens, " ") + " "

	var (
		sum     float64
		count   int
		matched []string
		seen    = make(map[string]struct{})
	)

	for i := 0; i < len(tokens); {
		span := l.maxTermWords
		if rest := len(tokens) - i; rest < span {
			span = rest
		}

		consumed := 0
		for n := span; n >= 1; n-- {
			candidate := strings.Join(tokens[i:i+n], " ")

			weight, ok := l.weightFor(candidate, padded)
			if !ok {
				continue
			}

			sum += weight
			count++
			if _, dup := seen[candidate]; !dup {
				seen[candidate] = struct{}{}
				matched = append(matched, candidate)
			}
			consumed = n
			break
		}

		if consumed == 0 {
			consumed = 1
		}
		i += consumed
	}

	if count == 0 {
		return LexiconMatch{}
	}

	return LexiconMatch{
		Adjustment:      sum / float64(count),
		MatchedKeywords: matched,
	}
}

func (l *Lexicon) weightFor(candidate, padded string) (float64, bool) {
	if entry, ok := l.terms[candidate]; ok {
		return entry.Weight, true
	}
	if ct, ok := l.contextTerms[candidate]; ok {
		return ct.Resolve(padded), true
	}
	return 0, false
}

// Resolve picks the weight for this context term given the whole text,
// padded with a leading and trailing space.
func (ct ContextTerm) Resolve(padded string) float64 {
	pos := anyPhrase(padded, ct.PositiveMarkers)
	neg := anyPhrase(padded, ct.NegativeMarkers)

	switch {
	case pos && !neg:
		return clamp(ct.DefaultWeight+contextShift, -1, 1)
	case neg && !pos:
		return clamp(ct.DefaultWeight-contextShift, -1, 1)
	default:
		return ct.DefaultWeight
	}
}

func anyPhrase(padded string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(padded, p) {
			return true
		}
	}
	return false
}

func containsPhrase(padded, phrase string) bool {
	return strings.Contains(padded, " "+phrase+" ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func hasTripleRun(s string) bool {
	runes := []rune(s)
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1] && runes[i] == runes[i-2] {
			return true
		}
	}
	return false
}
