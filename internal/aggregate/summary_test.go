package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 26, 13, 0, 0, 0, time.UTC)

func res(id string, minute int, adjusted float64, cat models.SentimentCategory, keywords ...string) models.EnsembleResult {
	return models.EnsembleResult{
		ItemID:            id,
		GroupKey:          "2024-8-RACE",
		Kind:              models.PrimaryItem,
		CreatedAt:         base.Add(time.Duration(minute) * time.Minute),
		AdjustedScore:     adjusted,
		EnsembleScore:     adjusted,
		SentimentCategory: cat,
		ModelAgreement:    0.5,
		MatchedKeywords:   keywords,
	}
}

func TestSummarize(t *testing.T) {
	results := []models.EnsembleResult{
		res("a", 0, 0.6, models.Positive, "podium", "overtake"),
		res("b", 30, -0.4, models.Negative, "crash"),
		res("c", 90, 0.1, models.Neutral, "podium"),
		res("d", 95, 0.5, models.Positive, "podium", "crash"),
	}
	results[1].Kind = models.ReplyItem
	results[2].DegradedModels = []string{"neural"}
	results[3].CreatedAt = time.Time{}

	s := Summarize("2024-8-RACE", results, 2)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, map[models.SentimentCategory]int{models.Positive: 2, models.Negative: 1, models.Neutral: 1}, s.Categories)
	assert.Equal(t, map[models.ItemKind]int{models.PrimaryItem: 3, models.ReplyItem: 1}, s.Kinds)
	assert.InDelta(t, 0.2, s.MeanAdjusted, 1e-12)

	wantStd := math.Sqrt((0.16 + 0.36 + 0.01 + 0.09) / 4)
	assert.InDelta(t, wantStd, s.StdDevAdjusted, 1e-12)
	assert.InDelta(t, 0.5, s.MeanAgreement, 1e-12)
	assert.Equal(t, 1, s.Degraded)

	assert.Equal(t, []KeywordCount{{"podium", 3}, {"crash", 2}}, s.TopKeywords)
	assert.Equal(t, base, s.First)
	assert.Equal(t, base.Add(90*time.Minute), s.Last)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("g", nil, DefaultTopKeywords)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0.0, s.MeanAdjusted)
	assert.Equal(t, 0, s.Categories[models.Positive])
	assert.NotNil(t, s.TopKeywords)
}

func TestBuckets(t *testing.T) {
	results := []models.EnsembleResult{
		res("a", 5, 0.6, models.Positive),
		res("b", 30, -0.2, models.Negative),
		res("c", 130, 0.3, models.Positive),
		res("d", 0, 0.9, models.Positive),
	}
	results[3].CreatedAt = time.Time{}

	buckets, err := Buckets(results, time.Hour)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, base, buckets[0].Start)
	assert.Equal(t, 2, buckets[0].Count)
	assert.InDelta(t, 0.2, buckets[0].MeanAdjusted, 1e-12)
	assert.Equal(t, 1, buckets[0].Categories[models.Negative])

	assert.Equal(t, base.Add(2*time.Hour), buckets[1].Start)
	assert.Equal(t, 1, buckets[1].Count)

	_, err = Buckets(results, 0)
	assert.ErrorIs(t, err, ErrInvalidBucket)

	buckets, err = Buckets(nil, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}
