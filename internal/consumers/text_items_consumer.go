package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/clients/kafka_client"
	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spacesedan/racepulse/internal/sentiment"
	"github.com/spacesedan/racepulse/internal/utils"
)

// TextItemScorer scores buffered text items and publishes the results.
type TextItemScorer struct {
	engine  *sentiment.Engine
	publish PublishFunc
	dedupe  Deduper

	buffer  *utils.BatchBuffer[models.TextItem]
	tracker *utils.MessageTracker
}

// NewTextItemScorer builds the scorer. dedupe may be nil.
func NewTextItemScorer(engine *sentiment.Engine, publish PublishFunc, dedupe Deduper) *TextItemScorer {
	return &TextItemScorer{
		engine:  engine,
		publish: publish,
		dedupe:  dedupe,
		buffer:  utils.NewBatchBuffer[models.TextItem](),
		tracker: utils.NewMessageTracker(),
	}
}

// Handle buffers the items of one message and reports whether the buffer is
// full enough to flush.
func (s *TextItemScorer) Handle(ctx context.Context, msg *kafka.Message) bool {
	items, err := DecodeTextItems(msg.Value)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka_client.KAFKA_TOPIC_TEXT_ITEMS, "invalid").Inc()
		utils.HandleConsumerError(err)
		return false
	}
	metrics.KafkaMessages.WithLabelValues(kafka_client.KAFKA_TOPIC_TEXT_ITEMS, "ok").Inc()

	return s.Enqueue(ctx, msg, items...)
}

// Enqueue buffers items that arrived in msg. msg may be nil when the items
// did not come from Kafka.
func (s *TextItemScorer) Enqueue(ctx context.Context, msg *kafka.Message, items ...models.TextItem) bool {
	for _, item := range items {
		if s.dedupe != nil && s.dedupe.IsProcessed(ctx, clients.VALKEY_SCORED_KEY, item.ID) {
			slog.Debug("[TextItemConsumer] Skipping already scored item",
				slog.String("item_id", item.ID))
			continue
		}
		if msg != nil {
			s.tracker.Track(item.ID, msg)
		}
		s.buffer.Add(item)
	}

	return s.buffer.Size() >= utils.BATCH_SIZE
}

// Pending is the number of buffered items not yet scored.
func (s *TextItemScorer) Pending() int { return s.buffer.Size() }

// Flush scores everything buffered, publishes the results and returns the
// messages that are now safe to commit. On a publish failure the items are
// put back and nothing is released.
func (s *TextItemScorer) Flush(ctx context.Context) []*kafka.Message {
	batch := s.buffer.GetAndClear()
	if len(batch) == 0 {
		return nil
	}

	results, err := s.engine.ProcessBatch(ctx, batch)
	if err != nil {
		slog.Warn("[TextItemConsumer] Batch interrupted, requeueing unscored items",
			slog.Int("scored", len(results)),
			slog.Int("total", len(batch)),
			slog.String("error", err.Error()))
		s.buffer.Requeue(batch[len(results):]...)
		batch = batch[:len(results)]
		if len(results) == 0 {
			return nil
		}
	}

	// Each group goes out under its own key so a session stays on one
	// partition. A group that fails is requeued on its own.
	var ids []string
	for _, group := range groupByKey(batch, results) {
		if err := publishWithRetry(ctx, s.publish, kafka_client.KAFKA_TOPIC_SENTIMENT_RESULTS, group.key, group.results); err != nil {
			slog.Error("[TextItemConsumer] Failed to publish results, will retry on next flush",
				slog.String("group_key", group.key),
				slog.Int("results", len(group.results)),
				slog.String("error", err.Error()))
			s.buffer.Requeue(group.items...)
			continue
		}
		for _, item := range group.items {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if s.dedupe != nil {
		if err := s.dedupe.MarkProcessed(ctx, clients.VALKEY_SCORED_KEY, ids...); err != nil {
			slog.Warn("[TextItemConsumer] Failed to mark items as scored",
				slog.String("error", err.Error()))
		}
	}

	slog.Info("[TextItemConsumer] Published results",
		slog.Int("count", len(ids)))
	return s.tracker.Release(ids...)
}

type resultGroup struct {
	key     string
	items   []models.TextItem
	results []models.EnsembleResult
}

// groupByKey splits a scored batch by GroupKey, keeping first-seen order.
// results[i] belongs to items[i].
func groupByKey(items []models.TextItem, results []models.EnsembleResult) []resultGroup {
	var groups []resultGroup
	index := make(map[string]int)

	for i, r := range results {
		g, ok := index[r.GroupKey]
		if !ok {
			g = len(groups)
			index[r.GroupKey] = g
			groups = append(groups, resultGroup{key: r.GroupKey})
		}
		groups[g].items = append(groups[g].items, items[i])
		groups[g].results = append(groups[g].results, r)
	}
	return groups
}

// StartTextItemConsumer returns the consumer loop for the text-items topic.
func StartTextItemConsumer(scorer *TextItemScorer) func(context.Context, *kafka.Consumer) {
	return func(ctx context.Context, consumer *kafka.Consumer) {
		iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
		committer := kafka_client.NewCommitHandler(context.WithoutCancel(ctx), consumer)

		slog.Info("[TextItemConsumer] Listening for text items...")

		ticker := time.NewTicker(utils.BATCH_TIMEOUT)
		defer ticker.Stop()

		flush := func(ctx context.Context) {
			if err := committer.CommitBatch(scorer.Flush(ctx)); err != nil {
				slog.Warn("[TextItemConsumer] Failed to commit offsets",
					slog.String("error", err.Error()))
			}
		}

		for {
			select {
			case <-ctx.Done():
				slog.Warn("[TextItemConsumer] Stopping consumer...")
				flush(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				flush(ctx)
			default:
				msg, err := iterator.Next()
				if err != nil {
					utils.HandleConsumerError(err, kafka_client.ErrNoMessage, context.Canceled)
					continue
				}
				if scorer.Handle(ctx, msg) {
					flush(ctx)
				}
			}
		}
	}
}
