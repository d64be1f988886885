package utils

import (
	"sync"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchBuffer(t *testing.T) {
	b := NewBatchBuffer[int]()
	assert.Nil(t, b.GetAndClear())

	b.Add(1, 2)
	b.Add(3)
	assert.Equal(t, 3, b.Size())

	assert.Equal(t, []int{1, 2, 3}, b.GetAndClear())
	assert.Equal(t, 0, b.Size())
}

func TestBatchBuffer_RequeueKeepsOrder(t *testing.T) {
	b := NewBatchBuffer[int]()
	b.Add(1, 2, 3)
	batch := b.GetAndClear()

	b.Add(4)
	b.Requeue(batch[1:]...)
	b.Requeue()

	assert.Equal(t, []int{2, 3, 4}, b.GetAndClear())
}

func TestBatchBuffer_ConcurrentAdd(t *testing.T) {
	b := NewBatchBuffer[int]()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Add(n)
		}(i)
	}
	wg.Wait()
	assert.Len(t, b.GetAndClear(), 20)
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	chunks := Chunk(items, 3)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 2, 3}, chunks[0])
	assert.Equal(t, []int{7}, chunks[2])

	assert.Len(t, Chunk(items, 7), 1)
	assert.Nil(t, Chunk(items, 0))
	assert.Nil(t, Chunk([]int{}, 3))

	// appending to a chunk must not clobber the next one
	chunks[0] = append(chunks[0], 99)
	assert.Equal(t, []int{4, 5, 6}, chunks[1])
}

func testMessage(partition int32, offset int64) *kafka.Message {
	topic := "text-items"
	return &kafka.Message{TopicPartition: kafka.TopicPartition{
		Topic:     &topic,
		Partition: partition,
		Offset:    kafka.Offset(offset),
	}}
}

func TestMessageTracker_ReleaseDedupesAndOrders(t *testing.T) {
	tracker := NewMessageTracker()
	first := testMessage(0, 10)
	second := testMessage(0, 11)
	other := testMessage(1, 3)

	tracker.Track("a", second)
	tracker.Track("b", first)
	tracker.Track("c", first)
	tracker.Track("d", other)
	assert.Equal(t, 4, tracker.Pending())

	released := tracker.Release("a", "b", "c", "d", "unknown")
	require.Len(t, released, 3)
	assert.Same(t, first, released[0])
	assert.Same(t, second, released[1])
	assert.Same(t, other, released[2])
	assert.Equal(t, 0, tracker.Pending())

	assert.Empty(t, tracker.Release("a"))
}

func TestMessageTracker_HoldsPartiallyReleasedMessage(t *testing.T) {
	tracker := NewMessageTracker()
	shared := testMessage(0, 5)

	tracker.Track("a", shared)
	tracker.Track("b", shared)

	assert.Empty(t, tracker.Release("a"))
	assert.Equal(t, 1, tracker.Pending())

	released := tracker.Release("b")
	require.Len(t, released, 1)
	assert.Same(t, shared, released[0])
}

func TestHandleConsumerError_Quiet(t *testing.T) {
	assert.NotPanics(t, func() {
		HandleConsumerError(nil)
		HandleConsumerError(assert.AnError, assert.AnError)
	})
}
