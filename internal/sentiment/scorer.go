package sentiment

import "context"

const (
	ModelVader    = "vader"
	ModelPolarity = "polarity"
	ModelNeural   = "neural"
)

// BaseScore is one scorer's view of one normalized text. Primary is in the
// scorer's native range, Secondary holds model specific extras.
type BaseScore struct {
	Model     string
	Primary   float64
	Secondary map[string]float64
	Label     string
}

// Scorer is implemented by every base model. Score may fail for a single
// text; the engine then substitutes Neutral() and keeps going.
type Scorer interface {
	Name() string
	Score(ctx context.Context, text string) (BaseScore, error)
	Neutral() BaseScore
}
