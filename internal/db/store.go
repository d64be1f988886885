package db

import (
	"context"
	"slices"
	"strings"

	"github.com/spacesedan/racepulse/internal/models"
)

// ResultStore persists scored items. SaveResults is an upsert keyed by item
// id, so replaying a batch is harmless.
type ResultStore interface {
	SaveResults(ctx context.Context, results []models.EnsembleResult) error
	ResultsByGroup(ctx context.Context, groupKey string) ([]models.EnsembleResult, error)
	Close() error
}

// ResultSink receives results after they are stored. Sinks are best effort.
type ResultSink interface {
	WriteResults(ctx context.Context, results []models.EnsembleResult) error
}

func sortResults(results []models.EnsembleResult) {
	slices.SortFunc(results, func(a, b models.EnsembleResult) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})
}
