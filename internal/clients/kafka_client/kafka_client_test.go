package kafka_client

import (
	"context"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(topic string, partition int32, offset int64) *kafka.Message {
	return &kafka.Message{TopicPartition: kafka.TopicPartition{
		Topic:     &topic,
		Partition: partition,
		Offset:    kafka.Offset(offset),
	}}
}

func TestNextOffsets(t *testing.T) {
	offsets := NextOffsets([]*kafka.Message{
		message(KAFKA_TOPIC_TEXT_ITEMS, 0, 10),
		message(KAFKA_TOPIC_TEXT_ITEMS, 1, 3),
		message(KAFKA_TOPIC_TEXT_ITEMS, 0, 12),
		message(KAFKA_TOPIC_TEXT_ITEMS, 0, 11),
	})

	require.Len(t, offsets, 2)
	assert.Equal(t, int32(0), offsets[0].Partition)
	assert.Equal(t, kafka.Offset(13), offsets[0].Offset)
	assert.Equal(t, int32(1), offsets[1].Partition)
	assert.Equal(t, kafka.Offset(4), offsets[1].Offset)
	assert.Equal(t, KAFKA_TOPIC_TEXT_ITEMS, *offsets[1].Topic)
}

func TestNextOffsets_Empty(t *testing.T) {
	assert.Empty(t, NextOffsets(nil))
}

func TestCommitBatch_NothingToCommit(t *testing.T) {
	ch := NewCommitHandler(t.Context(), nil)
	assert.NoError(t, ch.CommitBatch(nil))
	assert.Error(t, ch.CommitBatch([]*kafka.Message{message(KAFKA_TOPIC_TEXT_ITEMS, 0, 1)}))
}

func TestStartConsumer_UnknownTopic(t *testing.T) {
	RegisterConsumer(KAFKA_TOPIC_TEXT_ITEMS, func(context.Context, *kafka.Consumer) {})

	err := StartConsumer(t.Context(), KafkaConfig{Topic: "nope"})
	require.ErrorIs(t, err, ErrNoConsumer)
	assert.Contains(t, err.Error(), KAFKA_TOPIC_TEXT_ITEMS)
}
