package utils

import (
	"sort"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// MessageTracker remembers which Kafka message an item arrived in so the
// offset can be committed once the item has been handled.
type MessageTracker struct {
	messages map[string]*kafka.Message
	mu       sync.Mutex
}

func NewMessageTracker() *MessageTracker {
	return &MessageTracker{messages: make(map[string]*kafka.Message)}
}

func (t *MessageTracker) Track(itemID string, msg *kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages[itemID] = msg
}

// Release forgets itemIDs and returns their messages, each message once and
// ordered by partition and offset. A message that still carries tracked
// items is held back until those are released too.
func (t *MessageTracker) Release(itemIDs ...string) []*kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	type position struct {
		partition int32
		offset    kafka.Offset
	}
	seen := make(map[position]bool)
	var out []*kafka.Message

	for _, id := range itemIDs {
		msg, ok := t.messages[id]
		if !ok {
			continue
		}
		delete(t.messages, id)

		pos := position{msg.TopicPartition.Partition, msg.TopicPartition.Offset}
		if seen[pos] {
			continue
		}
		seen[pos] = true
		out = append(out, msg)
	}

	if len(out) > 0 && len(t.messages) > 0 {
		pending := make(map[*kafka.Message]bool, len(t.messages))
		for _, msg := range t.messages {
			pending[msg] = true
		}
		done := out[:0]
		for _, msg := range out {
			if !pending[msg] {
				done = append(done, msg)
			}
		}
		out = done
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].TopicPartition, out[j].TopicPartition
		if a.Partition != b.Partition {
			return a.Partition < b.Partition
		}
		return a.Offset < b.Offset
	})
	return out
}

func (t *MessageTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
