package kafka_client

import (
	"github.com/google/uuid"
	"github.com/spacesedan/racepulse/config"
)

type KafkaConfig struct {
	Broker  string
	GroupID string
	Topic   string

	// TransactionalID must be unique per running producer.
	TransactionalID string
}

func GetKafkaConfig(cfg *config.Config) KafkaConfig {
	return KafkaConfig{
		Broker:          cfg.KafkaBroker,
		GroupID:         cfg.KafkaGroupID,
		Topic:           cfg.KafkaTopic,
		TransactionalID: "racepulse-producer-" + uuid.NewString(),
	}
}
