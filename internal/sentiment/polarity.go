package sentiment

import (
	"context"
	"fmt"

	"github.com/tsawler/prose/v3"
)

// PolarityScorer is the general purpose polarity/subjectivity model. It uses
// the prose sentiment analyzer for polarity and derives subjectivity from the
// share of opinion-bearing words it found.
type PolarityScorer struct {
	analyzer *prose.SentimentAnalyzer
}

func NewPolarityScorer() *PolarityScorer {
	return &PolarityScorer{
		analyzer: prose.NewSentimentAnalyzer(prose.English, prose.DefaultSentimentConfig()),
	}
}

func (p *PolarityScorer) Name() string { return ModelPolarity }

func (p *PolarityScorer) Neutral() BaseScore {
	return BaseScore{
		Model:     ModelPolarity,
		Primary:   0,
		Secondary: map[string]float64{"subjectivity": 0},
		Label:     labelFor(0),
	}
}

func (p *PolarityScorer) Score(ctx context.Context, text string) (BaseScore, error) {
	if text == "" {
		return p.Neutral(), nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithContext(ctx),
		prose.WithExtraction(false))
	if err != nil {
		return p.Neutral(), fmt.Errorf("[PolarityScorer] failed to build document: %w", err)
	}

	result := p.analyzer.AnalyzeDocument(doc)
	polarity := clamp(result.Polarity, -1, 1)

	return BaseScore{
		Model:   ModelPolarity,
		Primary: polarity,
		Secondary: map[string]float64{
			"subjectivity": subjectivity(result.Features, len(doc.Tokens())),
		},
		Label: labelFor(polarity),
	}, nil
}

// subjectivity is the fraction of tokens that carried an opinion or
// intensified one, capped at 1.
func subjectivity(f prose.SentimentFeatures, tokens int) float64 {
	if tokens == 0 {
		return 0
	}
	opinionated := len(f.PositiveWords) + len(f.NegativeWords) + len(f.Intensifiers)
	return clamp(float64(opinionated)/float64(tokens), 0, 1)
}
