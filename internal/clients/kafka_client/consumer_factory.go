package kafka_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// ConsumerFunc runs the consume loop for one topic until ctx is done.
type ConsumerFunc func(context.Context, *kafka.Consumer)

var ErrNoConsumer = errors.New("no consumer registered for topic")

var (
	consumerRegistry   = make(map[string]ConsumerFunc)
	consumerRegistryMu sync.RWMutex
)

func RegisterConsumer(topic string, consumerFunc ConsumerFunc) {
	consumerRegistryMu.Lock()
	defer consumerRegistryMu.Unlock()
	consumerRegistry[topic] = consumerFunc
}

func lookupConsumer(topic string) (ConsumerFunc, error) {
	consumerRegistryMu.RLock()
	defer consumerRegistryMu.RUnlock()

	if fn, ok := consumerRegistry[topic]; ok {
		return fn, nil
	}

	registered := make([]string, 0, len(consumerRegistry))
	for t := range consumerRegistry {
		registered = append(registered, t)
	}
	sort.Strings(registered)
	return nil, fmt.Errorf("[ConsumerFactory] %w: %s (registered: %v)", ErrNoConsumer, topic, registered)
}

// StartConsumer subscribes to cfg.Topic and runs the consumer registered for
// it until ctx is done. The Kafka consumer is closed on return, which leaves
// the group cleanly.
func StartConsumer(ctx context.Context, cfg KafkaConfig) error {
	consumerFunc, err := lookupConsumer(cfg.Topic)
	if err != nil {
		return err
	}

	consumer, err := NewConsumer(cfg)
	if err != nil {
		return fmt.Errorf("[ConsumerFactory] Failed to initialize Kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Warn("[ConsumerFactory] Failed to close consumer",
				slog.String("error", err.Error()))
		}
	}()

	slog.Info("[ConsumerFactory] Starting consumer for topic...",
		slog.String("topic", cfg.Topic),
		slog.String("group_id", cfg.GroupID))
	consumerFunc(ctx, consumer)

	return nil
}
