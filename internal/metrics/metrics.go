package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racepulse_items_scored_total",
		Help: "Text items scored by the engine, by sentiment category.",
	}, []string{"category"})

	AdapterFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racepulse_adapter_fallbacks_total",
		Help: "Per-item scorer failures replaced by the scorer's neutral default.",
	}, []string{"model"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "racepulse_batch_duration_seconds",
		Help:    "Wall time spent scoring one batch.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	KafkaMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racepulse_kafka_messages_total",
		Help: "Kafka messages handled by consumers, by topic and outcome.",
	}, []string{"topic", "status"})

	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racepulse_store_writes_total",
		Help: "Results written to a store, by backend and outcome.",
	}, []string{"backend", "status"})

	CollectedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racepulse_collected_items_total",
		Help: "Posts and replies collected from Reddit, by kind.",
	}, []string{"kind"})
)
