package kafka_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// KafkaCommitHandler commits offsets by hand once the items of a message have
// been handled downstream.
type KafkaCommitHandler struct {
	consumer *kafka.Consumer
	ctx      context.Context
}

func NewCommitHandler(ctx context.Context, consumer *kafka.Consumer) *KafkaCommitHandler {
	return &KafkaCommitHandler{
		consumer: consumer,
		ctx:      ctx,
	}
}

// NextOffsets returns, for each topic partition in msgs, the offset after the
// highest message seen. Committing these is the same as committing every
// message in order.
func NextOffsets(msgs []*kafka.Message) []kafka.TopicPartition {
	type key struct {
		topic     string
		partition int32
	}
	index := make(map[key]int)
	var out []kafka.TopicPartition

	for _, msg := range msgs {
		tp := msg.TopicPartition
		topic := ""
		if tp.Topic != nil {
			topic = *tp.Topic
		}
		k := key{topic, tp.Partition}
		next := tp.Offset + 1

		if i, ok := index[k]; ok {
			if next > out[i].Offset {
				out[i].Offset = next
			}
			continue
		}
		index[k] = len(out)
		out = append(out, kafka.TopicPartition{Topic: tp.Topic, Partition: tp.Partition, Offset: next})
	}

	return out
}

// CommitBatch commits the released messages of one flush in a single call.
func (ch *KafkaCommitHandler) CommitBatch(msgs []*kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if ch.consumer == nil {
		return errors.New("[KafkaCommitHandler] Kafka consumer has not been initialized")
	}

	offsets := NextOffsets(msgs)

	for i := 0; i < MAX_RETRIES; i++ {
		_, err := ch.consumer.CommitOffsets(offsets)
		if err == nil {
			slog.Debug("[KafkaCommitHandler] Committed offsets",
				slog.Int("messages", len(msgs)),
				slog.Int("partitions", len(offsets)))
			return nil
		}

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrAllBrokersDown {
			slog.Error("[KafkaCommitHandler] All Kafka brokers are down. Aborting commit")
			return err
		}

		slog.Warn("[KafkaCommitHandler] Failed to commit offsets, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()),
			slog.String("offsets", fmt.Sprint(offsets)))

		select {
		case <-ch.ctx.Done():
			slog.Warn("[KafkaCommitHandler] Context canceled, stopping commit")
			return ch.ctx.Err()
		case <-time.After(RETRY_DELAY):
		}
	}

	return fmt.Errorf("[KafkaCommitHandler] Failed to commit offsets after %d retries", MAX_RETRIES)
}
