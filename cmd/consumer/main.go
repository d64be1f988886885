package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spacesedan/racepulse/internal/app"
	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/clients/kafka_client"
	"github.com/spacesedan/racepulse/internal/consumers"
	"github.com/spacesedan/racepulse/internal/db"
	"github.com/spacesedan/racepulse/internal/monitoring"
)

func main() {
	cfg := app.Init()

	ctx, cancel := app.SignalContext()
	defer cancel()

	kafkaCfg := kafka_client.GetKafkaConfig(cfg)

	switch kafkaCfg.Topic {
	case kafka_client.KAFKA_TOPIC_TEXT_ITEMS:
		engine, err := app.NewEngine(cfg)
		if err != nil {
			slog.Error("[Main] Failed to build scoring engine", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer clients.CloseHugot()

		for {
			err := kafka_client.InitKafkaProducer(kafkaCfg)
			if err == nil {
				break
			}
			slog.Warn("[Main] Kafka init failed, retrying...", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
		defer kafka_client.CloseKafkaProducer()

		valkey := clients.InitValkey()
		defer clients.CloseValkey()

		go monitoring.ReportProgress(ctx, engine, cfg.ProgressPeriod)

		scorer := consumers.NewTextItemScorer(engine, kafka_client.PublishToKafka, valkey)
		kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_TEXT_ITEMS, consumers.StartTextItemConsumer(scorer))

	case kafka_client.KAFKA_TOPIC_SENTIMENT_RESULTS:
		store, _, err := app.OpenStore(cfg)
		if err != nil {
			slog.Error("[Main] Failed to open result store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()

		var sink db.ResultSink
		if influx := app.NewSink(cfg); influx != nil {
			defer influx.Close()
			sink = influx
		}

		writer := consumers.NewResultWriter(store, sink)
		kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_SENTIMENT_RESULTS, consumers.StartResultsConsumer(writer))
	}

	if err := kafka_client.StartConsumer(ctx, kafkaCfg); err != nil {
		slog.Error("[Main] Failed to start consumer",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("[Main] Consumer stopped")
}
