package sentiment

import (
	"context"

	"github.com/jonreiter/govader"
)

type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderScorer) Name() string { return ModelVader }

func (v *VaderScorer) Neutral() BaseScore {
	return BaseScore{
		Model:   ModelVader,
		Primary: 0,
		Secondary: map[string]float64{
			"pos": 0,
			"neg": 0,
			"neu": 1,
		},
		Label: labelFor(0),
	}
}

// Score returns the VADER compound score in [-1,1] with the positive,
// negative and neutral proportions as secondary fields.
func (v *VaderScorer) Score(_ context.Context, text string) (BaseScore, error) {
	if text == "" {
		return v.Neutral(), nil
	}

	s := v.analyzer.PolarityScores(text)

	return BaseScore{
		Model:   ModelVader,
		Primary: s.Compound,
		Secondary: map[string]float64{
			"pos": s.Positive,
			"neg": s.Negative,
			"neu": s.Neutral,
		},
		Label: labelFor(s.Compound),
	}, nil
}

func labelFor(score float64) string {
	switch {
	case score >= 0.20:
		return "positive"
	case score <= -0.20:
		return "negative"
	default:
		return "neutral"
	}
}
