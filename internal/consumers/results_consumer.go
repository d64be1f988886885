package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/racepulse/internal/clients/kafka_client"
	"github.com/spacesedan/racepulse/internal/db"
	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spacesedan/racepulse/internal/utils"
)

const storeAttempts = 3

var storeRetryDelay = time.Second

// ResultWriter persists scored results to the store and, when configured, to
// a time-series sink.
type ResultWriter struct {
	store db.ResultStore
	sink  db.ResultSink

	buffer  *utils.BatchBuffer[models.EnsembleResult]
	tracker *utils.MessageTracker
}

// NewResultWriter builds the writer. sink may be nil.
func NewResultWriter(store db.ResultStore, sink db.ResultSink) *ResultWriter {
	return &ResultWriter{
		store:   store,
		sink:    sink,
		buffer:  utils.NewBatchBuffer[models.EnsembleResult](),
		tracker: utils.NewMessageTracker(),
	}
}

// DecodeResults accepts a JSON list of results or a single result.
func DecodeResults(value []byte) ([]models.EnsembleResult, error) {
	var results []models.EnsembleResult
	if err := json.Unmarshal(value, &results); err != nil {
		var single models.EnsembleResult
		if singleErr := json.Unmarshal(value, &single); singleErr != nil {
			return nil, fmt.Errorf("[Consumers] message is neither a result nor a list of results: %w", err)
		}
		results = []models.EnsembleResult{single}
	}

	valid := results[:0]
	for _, r := range results {
		if r.ItemID == "" || r.GroupKey == "" {
			slog.Warn("[Consumers] Dropping result without id or group key",
				slog.String("item_id", r.ItemID))
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

// Enqueue buffers results that arrived in msg and reports whether a flush is
// due. msg may be nil.
func (w *ResultWriter) Enqueue(msg *kafka.Message, results ...models.EnsembleResult) bool {
	for _, r := range results {
		if msg != nil {
			w.tracker.Track(r.ItemID, msg)
		}
	}
	w.buffer.Add(results...)
	return w.buffer.Size() >= utils.DYNAMODB_BATCH_SIZE
}

// Flush writes everything buffered and returns the messages that can be
// committed. Results stay buffered when the store keeps failing.
func (w *ResultWriter) Flush(ctx context.Context) []*kafka.Message {
	batch := w.buffer.GetAndClear()
	if len(batch) == 0 {
		return nil
	}

	var err error
	for i := 0; i < storeAttempts; i++ {
		if err = w.store.SaveResults(ctx, batch); err == nil {
			break
		}
		slog.Warn("[ResultsConsumer] Failed to save results, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(storeRetryDelay):
			continue
		}
		break
	}
	if err != nil {
		slog.Error("[ResultsConsumer] Giving up on batch for now",
			slog.Int("results", len(batch)),
			slog.String("error", err.Error()))
		w.buffer.Requeue(batch...)
		return nil
	}

	if w.sink != nil {
		if err := w.sink.WriteResults(ctx, batch); err != nil {
			slog.Warn("[ResultsConsumer] Failed to write results to sink",
				slog.String("error", err.Error()))
		}
	}

	ids := make([]string, len(batch))
	for i, r := range batch {
		ids[i] = r.ItemID
	}

	slog.Info("[ResultsConsumer] Saved results",
		slog.Int("count", len(batch)))
	return w.tracker.Release(ids...)
}

// StartResultsConsumer returns the consumer loop for the sentiment-results
// topic.
func StartResultsConsumer(writer *ResultWriter) func(context.Context, *kafka.Consumer) {
	return func(ctx context.Context, consumer *kafka.Consumer) {
		iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
		committer := kafka_client.NewCommitHandler(context.WithoutCancel(ctx), consumer)

		slog.Info("[ResultsConsumer] Listening for sentiment results...")

		ticker := time.NewTicker(utils.BATCH_TIMEOUT)
		defer ticker.Stop()

		flush := func(ctx context.Context) {
			if err := committer.CommitBatch(writer.Flush(ctx)); err != nil {
				slog.Warn("[ResultsConsumer] Failed to commit offsets",
					slog.String("error", err.Error()))
			}
		}

		for {
			select {
			case <-ctx.Done():
				slog.Warn("[ResultsConsumer] Stopping consumer...")
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

				results, err := DecodeResults(msg.Value)
				if err != nil {
					metrics.KafkaMessages.WithLabelValues(kafka_client.KAFKA_TOPIC_SENTIMENT_RESULTS, "invalid").Inc()
					utils.HandleConsumerError(err)
					continue
				}
				metrics.KafkaMessages.WithLabelValues(kafka_client.KAFKA_TOPIC_SENTIMENT_RESULTS, "ok").Inc()

				if writer.Enqueue(msg, results...) {
					flush(ctx)
				}
			}
		}
	}
}
