package aggregate

import (
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
	"gonum.org/v1/gonum/stat"
)

const DefaultTopKeywords = 10

var ErrInvalidBucket = errors.New("bucket size must be positive")

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Summary describes the sentiment of one group of results.
type Summary struct {
	GroupKey string `json:"group_key"`
	Count    int    `json:"count"`

	Categories map[models.SentimentCategory]int `json:"categories"`
	Kinds      map[models.ItemKind]int          `json:"kinds"`

	MeanAdjusted   float64 `json:"mean_adjusted_score"`
	StdDevAdjusted float64 `json:"stddev_adjusted_score"`
	MeanEnsemble   float64 `json:"mean_ensemble_score"`
	MeanAgreement  float64 `json:"mean_model_agreement"`
	MeanPenalty    float64 `json:"mean_confidence_penalty"`

	TopKeywords []KeywordCount `json:"top_keywords"`
	Degraded    int            `json:"degraded_items"`

	First time.Time `json:"first,omitempty"`
	Last  time.Time `json:"last,omitempty"`
}

// Bucket is the slice of a group that falls in [Start, Start+size).
type Bucket struct {
	Start        time.Time                        `json:"start"`
	Count        int                              `json:"count"`
	MeanAdjusted float64                          `json:"mean_adjusted_score"`
	Categories   map[models.SentimentCategory]int `json:"categories"`
}

func newCategoryCounts() map[models.SentimentCategory]int {
	return map[models.SentimentCategory]int{
		models.Positive: 0,
		models.Neutral:  0,
		models.Negative: 0,
	}
}

// Summarize aggregates results. Items with a zero CreatedAt are counted but
// do not move First and Last.
func Summarize(groupKey string, results []models.EnsembleResult, topKeywords int) Summary {
	s := Summary{
		GroupKey:    groupKey,
		Count:       len(results),
		Categories:  newCategoryCounts(),
		Kinds:       map[models.ItemKind]int{},
		TopKeywords: []KeywordCount{},
	}
	if len(results) == 0 {
		return s
	}

	adjusted := make([]float64, len(results))
	ensemble := make([]float64, len(results))
	agreement := make([]float64, len(results))
	penalty := make([]float64, len(results))
	keywords := map[string]int{}

	for i, r := range results {
		adjusted[i] = r.AdjustedScore
		ensemble[i] = r.EnsembleScore
		agreement[i] = r.ModelAgreement
		penalty[i] = r.ConfidencePenalty

		s.Categories[r.SentimentCategory]++
		s.Kinds[r.Kind]++
		if len(r.DegradedModels) > 0 {
			s.Degraded++
		}
		for _, kw := range r.MatchedKeywords {
			keywords[kw]++
		}

		if r.CreatedAt.IsZero() {
			continue
		}
		if s.First.IsZero() || r.CreatedAt.Before(s.First) {
			s.First = r.CreatedAt
		}
		if r.CreatedAt.After(s.Last) {
			s.Last = r.CreatedAt
		}
	}

	s.MeanAdjusted, s.StdDevAdjusted = stat.PopMeanStdDev(adjusted, nil)
	s.MeanEnsemble = stat.Mean(ensemble, nil)
	s.MeanAgreement = stat.Mean(agreement, nil)
	s.MeanPenalty = stat.Mean(penalty, nil)
	s.TopKeywords = topN(keywords, topKeywords)

	return s
}

func topN(counts map[string]int, n int) []KeywordCount {
	out := make([]KeywordCount, 0, len(counts))
	for kw, c := range counts {
		out = append(out, KeywordCount{Keyword: kw, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Buckets groups results into consecutive windows of size, as cut by
// time.Truncate, in time order. Empty windows are left out and results without
// a timestamp are skipped.
func Buckets(results []models.EnsembleResult, size time.Duration) ([]Bucket, error) {
	if size <= 0 {
		return nil, ErrInvalidBucket
	}

	scores := map[time.Time][]float64{}
	categories := map[time.Time]map[models.SentimentCategory]int{}

	for _, r := range results {
		if r.CreatedAt.IsZero() {
			continue
		}
		start := r.CreatedAt.UTC().Truncate(size)
		scores[start] = append(scores[start], r.AdjustedScore)
		if categories[start] == nil {
			categories[start] = newCategoryCounts()
		}
		categories[start][r.SentimentCategory]++
	}

	starts := make([]time.Time, 0, len(scores))
	for start := range scores {
		starts = append(starts, start)
	}
	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })

	buckets := make([]Bucket, len(starts))
	for i, start := range starts {
		buckets[i] = Bucket{
			Start:        start,
			Count:        len(scores[start]),
			MeanAdjusted: stat.Mean(scores[start], nil),
			Categories:   categories[start],
		}
	}
	return buckets, nil
}
