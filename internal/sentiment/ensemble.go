package sentiment

import (
	"errors"
	"fmt"
	"math"

	"github.com/spacesedan/racepulse/internal/models"
	"gonum.org/v1/gonum/stat"
)

const (
	positiveThreshold = 0.1
	negativeThreshold = -0.1

	weightEpsilon = 1e-9
)

var (
	ErrInvalidWeights        = errors.New("invalid ensemble weights")
	ErrUnknownFallbackPolicy = errors.New("unknown neural fallback policy")
)

type Weights struct {
	Vader    float64
	Polarity float64
	Neural   float64
}

func DefaultWeights() Weights {
	return Weights{Vader: 0.4, Polarity: 0.3, Neural: 0.3}
}

// Validate rejects negative weights and weights that do not sum to 1.
// Weights are never silently renormalized here.
func (w Weights) Validate() error {
	if sum := w.Vader + w.Polarity + w.Neural; math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("%w: weights must be finite, got %+v", ErrInvalidWeights, w)
	}
	if w.Vader < 0 || w.Polarity < 0 || w.Neural < 0 {
		return fmt.Errorf("%w: weights must be non-negative, got %+v", ErrInvalidWeights, w)
	}
	if sum := w.Vader + w.Polarity + w.Neural; math.Abs(sum-1) > weightEpsilon {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// FallbackPolicy decides how the ensemble treats a neural scorer that is
// disabled for the whole process.
type FallbackPolicy string

const (
	// FallbackRenormalize rescales the remaining two weights to sum to 1.
	FallbackRenormalize FallbackPolicy = "renormalize"
	// FallbackZero keeps the configured weights and lets the neural term
	// contribute 0.
	FallbackZero FallbackPolicy = "zero"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case FallbackRenormalize, FallbackZero:
		return FallbackPolicy(s), nil
	case "":
		return FallbackRenormalize, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFallbackPolicy, s)
	}
}

// Effective returns the weights to fuse with given whether the neural scorer
// is available at all.
func (w Weights) Effective(neuralEnabled bool, policy FallbackPolicy) Weights {
	if neuralEnabled || policy != FallbackRenormalize {
		return w
	}
	rest := w.Vader + w.Polarity
	if rest == 0 {
		return w
	}
	return Weights{Vader: w.Vader / rest, Polarity: w.Polarity / rest, Neural: 0}
}

// Fuse combines the three component scores into one ensemble score.
func Fuse(vader, polarity, neural float64, w Weights) (float64, models.SentimentCategory) {
	score := vader*w.Vader + polarity*w.Polarity + neural*w.Neural
	return score, Categorize(score)
}

// Categorize uses strict thresholds, so exactly 0.1 and -0.1 are neutral.
func Categorize(score float64) models.SentimentCategory {
	switch {
	case score > positiveThreshold:
		return models.Positive
	case score < negativeThreshold:
		return models.Negative
	default:
		return models.Neutral
	}
}

// ModelAgreement is 1 minus the population standard deviation of the three
// component scores, floored at 0.
func ModelAgreement(vader, polarity, neural float64) float64 {
	sd := stat.PopStdDev([]float64{vader, polarity, neural}, nil)
	return math.Max(0, 1-sd)
}
