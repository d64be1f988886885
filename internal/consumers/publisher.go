package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
)

// PublishFunc sends payload to topic. kafka_client.PublishToKafka satisfies
// it; tests pass a recorder.
type PublishFunc func(ctx context.Context, topic, key string, payload interface{}) error

// Deduper remembers processed item ids. *clients.ValkeyClient satisfies it.
type Deduper interface {
	IsProcessed(ctx context.Context, set string, id string) bool
	MarkProcessed(ctx context.Context, set string, ids ...string) error
}

const publishAttempts = 3

var publishRetryDelay = 2 * time.Second

func publishWithRetry(ctx context.Context, publish PublishFunc, topic, key string, payload interface{}) error {
	var err error
	for i := 0; i < publishAttempts; i++ {
		err = publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}
		slog.Warn("[Consumers] Publishing failed",
			slog.String("topic", topic),
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(publishRetryDelay):
		}
	}
	return fmt.Errorf("[Consumers] publish to %s failed after %d attempts: %w", topic, publishAttempts, err)
}

// DecodeTextItems accepts either a JSON array of items or a single item and
// drops items without an id or with an unknown kind.
func DecodeTextItems(value []byte) ([]models.TextItem, error) {
	var items []models.TextItem
	if err := json.Unmarshal(value, &items); err != nil {
		var single models.TextItem
		if singleErr := json.Unmarshal(value, &single); singleErr != nil {
			return nil, fmt.Errorf("[Consumers] message is neither an item nor a list of items: %w", err)
		}
		items = []models.TextItem{single}
	}

	valid := items[:0]
	for _, item := range items {
		if item.ID == "" || !item.Kind.Valid() {
			slog.Warn("[Consumers] Dropping malformed text item",
				slog.String("item_id", item.ID),
				slog.String("kind", string(item.Kind)))
			continue
		}
		valid = append(valid, item)
	}
	return valid, nil
}
