package models

import "time"

type SentimentCategory string

const (
	Positive SentimentCategory = "POSITIVE"
	Negative SentimentCategory = "NEGATIVE"
	Neutral  SentimentCategory = "NEUTRAL"
)

// EnsembleResult is the stored outcome for one TextItem. The json and
// dynamodbav names are the column names downstream consumers read.
type EnsembleResult struct {
	ItemID    string    `json:"id" dynamodbav:"id"`
	GroupKey  string    `json:"group_key" dynamodbav:"group_key"`
	Kind      ItemKind  `json:"kind" dynamodbav:"kind"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`

	EnsembleScore     float64           `json:"ensemble_score" dynamodbav:"ensemble_score"`
	SentimentCategory SentimentCategory `json:"sentiment_category" dynamodbav:"sentiment_category"`

	VaderScore    float64 `json:"vader_score" dynamodbav:"vader_score"`
	PolarityScore float64 `json:"textblob_polarity" dynamodbav:"textblob_polarity"`
	Subjectivity  float64 `json:"textblob_subjectivity" dynamodbav:"textblob_subjectivity"`
	BertScore     float64 `json:"bert_score" dynamodbav:"bert_score"`
	BertLabel     string  `json:"bert_label" dynamodbav:"bert_label"`

	ModelAgreement    float64 `json:"model_agreement" dynamodbav:"model_agreement"`
	ConfidencePenalty float64 `json:"confidence_penalty" dynamodbav:"confidence_penalty"`
	AdjustedScore     float64 `json:"adjusted_score" dynamodbav:"adjusted_score"`

	CleanedText     string   `json:"cleaned_text" dynamodbav:"cleaned_text"`
	MatchedKeywords []string `json:"matched_keywords" dynamodbav:"matched_keywords"`

	// DegradedModels lists adapters that fell back to their neutral default
	// for this item.
	DegradedModels []string `json:"degraded_models,omitempty" dynamodbav:"degraded_models,omitempty"`
}
