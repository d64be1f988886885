package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestValidator(t *testing.T) *ConfidenceValidator {
	t.Helper()
	return NewConfidenceValidator(defaultLexicon(t))
}

func TestValidate_Rules(t *testing.T) {
	cv := newTestValidator(t)
	const clean = "a perfectly ordinary sentence about the race"

	tests := []struct {
		name       string
		raw        string
		normalized string
		want       float64
	}{
		{"clean", clean, clean, 0},
		{"empty", "", "", -0.3},
		{"short", "meh", "meh", -0.3},
		{"many numbers", clean, "lap 1 lap 2 lap 3 lap 4 was fine", -0.2},
		{"three numbers are fine", clean, "lap 1 lap 2 lap 3 was fine", 0},
		{"link", clean + " http://x.com", clean, -0.1},
		{"participant dump", "Max and Lewis and Charles were great today", clean, -0.15},
		{"two participants are fine", "Max and Lewis were great today", clean, 0},
		{"punctuation run", "what a race?!", clean, -0.1},
		{"emoji heavy", ":a::b:", clean, -0.2},
		{"penalties add up", "Max Lewis Charles?? http", "1 2 3 4", -0.3 - 0.2 - 0.1 - 0.15 - 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cv.Validate(tt.raw, tt.normalized), 1e-12)
		})
	}
}

func TestValidate_ParticipantsWholeWordCaseInsensitive(t *testing.T) {
	cv := newTestValidator(t)
	const clean = "a perfectly ordinary sentence about the race"

	assert.Equal(t, 0.0, cv.Validate("maximum effort, maxed out, maxima", clean))
	assert.InDelta(t, -0.15, cv.Validate("RED BULL and red bull and Red Bull", clean), 1e-12)
}

func TestApplyPenalty_NeverAmplifies(t *testing.T) {
	for _, score := range []float64{-1, -0.37, 0, 0.2, 0.99} {
		for _, penalty := range []float64{0, -0.1, -0.3, -0.65, -1} {
			adjusted := ApplyPenalty(score, penalty)
			assert.LessOrEqual(t, abs(adjusted), abs(score)+1e-15)
		}
	}
	assert.InDelta(t, 0.35, ApplyPenalty(0.5, -0.3), 1e-12)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
