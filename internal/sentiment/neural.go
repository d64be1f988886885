package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
	LabelPositive = "positive"

	DefaultNeuralMaxChars = 500
)

// ClassProbability is one class score as reported by a classifier backend.
type ClassProbability struct {
	Label       string
	Probability float64
}

// Classifier runs a pretrained three-class sentiment model on one text.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]ClassProbability, error)
}

var errNoKnownLabels = errors.New("classifier returned no known sentiment labels")

// NeuralScorer wraps an optional Classifier. A nil classifier means the model
// could not be loaded and the scorer stays neutral for the whole process.
type NeuralScorer struct {
	classifier Classifier
	maxChars   int
}

func NewNeuralScorer(classifier Classifier, maxChars int) *NeuralScorer {
	if maxChars <= 0 {
		maxChars = DefaultNeuralMaxChars
	}
	if classifier == nil {
		slog.Warn("[NeuralScorer] No classifier available, neural scores disabled for this process")
	}
	return &NeuralScorer{classifier: classifier, maxChars: maxChars}
}

func (n *NeuralScorer) Name() string { return ModelNeural }

func (n *NeuralScorer) Enabled() bool { return n.classifier != nil }

func (n *NeuralScorer) Neutral() BaseScore {
	return BaseScore{
		Model:   ModelNeural,
		Primary: 0,
		Secondary: map[string]float64{
			LabelNegative: 0,
			LabelNeutral:  1,
			LabelPositive: 0,
		},
		Label: LabelNeutral,
	}
}

// Score returns p(positive) - p(negative) and the most likely class. Input is
// cut to the first maxChars characters.
func (n *NeuralScorer) Score(ctx context.Context, text string) (BaseScore, error) {
	if !n.Enabled() || text == "" {
		return n.Neutral(), nil
	}

	probs, err := n.classifier.Classify(ctx, Truncate(text, n.maxChars))
	if err != nil {
		return n.Neutral(), fmt.Errorf("[NeuralScorer] classification failed: %w", err)
	}

	secondary := map[string]float64{
		LabelNegative: 0,
		LabelNeutral:  0,
		LabelPositive: 0,
	}
	known := false
	for _, p := range probs {
		label, ok := CanonicalLabel(p.Label)
		if !ok {
			continue
		}
		secondary[label] += p.Probability
		known = true
	}
	if !known {
		return n.Neutral(), fmt.Errorf("[NeuralScorer] %w", errNoKnownLabels)
	}

	best := LabelNeutral
	for _, label := range []string{LabelNegative, LabelNeutral, LabelPositive} {
		if secondary[label] > secondary[best] {
			best = label
		}
	}

	return BaseScore{
		Model:     ModelNeural,
		Primary:   secondary[LabelPositive] - secondary[LabelNegative],
		Secondary: secondary,
		Label:     best,
	}, nil
}

// CanonicalLabel maps the label spellings used by common sentiment models
// onto negative/neutral/positive.
func CanonicalLabel(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "negative", "neg", "label_0":
		return LabelNegative, true
	case "neutral", "neu", "label_1":
		return LabelNeutral, true
	case "positive", "pos", "label_2":
		return LabelPositive, true
	default:
		return "", false
	}
}

// Truncate keeps the first max runes of text.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
