package kafka_client

import "time"

const (
	KAFKA_TOPIC_TEXT_ITEMS        = "text-items"        // posts and replies waiting to be scored
	KAFKA_TOPIC_SENTIMENT_RESULTS = "sentiment-results" // scored items waiting to be stored
)

const (
	MAX_RETRIES  = 5
	RETRY_DELAY  = 2 * time.Second
	POLL_TIMEOUT = 500 * time.Millisecond
)
