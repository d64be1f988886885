package db

import (
	"fmt"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
)

func sampleResult(id, group string, minute int) models.EnsembleResult {
	return models.EnsembleResult{
		ItemID:            id,
		GroupKey:          group,
		Kind:              models.PrimaryItem,
		CreatedAt:         time.Date(2025, 5, 25, 13, minute, 0, 0, time.UTC),
		EnsembleScore:     0.42,
		SentimentCategory: models.Positive,
		VaderScore:        0.5,
		PolarityScore:     0.3,
		Subjectivity:      0.6,
		BertScore:         0.4,
		BertLabel:         "positive",
		ModelAgreement:    0.9,
		ConfidencePenalty: -0.1,
		AdjustedScore:     0.378,
		CleanedText:       fmt.Sprintf("cleaned text %s", id),
		MatchedKeywords:   []string{"podium"},
	}
}
