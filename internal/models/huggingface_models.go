package models

type ClassificationRequest struct {
	Inputs []string `json:"inputs"`
}

type ClassLabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassificationResponse holds one list of label scores per input.
type ClassificationResponse [][]ClassLabelScore
