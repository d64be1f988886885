package utils

import (
	"errors"
	"log/slog"
)

// HandleConsumerError logs err unless it is one of the quiet errors, such as
// a poll timeout.
func HandleConsumerError(err error, quiet ...error) {
	if err == nil {
		return
	}
	for _, q := range quiet {
		if errors.Is(err, q) {
			return
		}
	}
	slog.Error("[KafkaUtils] Kafka Consumer Error",
		slog.String("error", err.Error()))
}
