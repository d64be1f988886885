package db

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
)

const sentimentMeasurement = "item_sentiment"

// InfluxSink mirrors results into InfluxDB so scores can be charted per
// session over time.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	slog.Info("[InfluxDB] Sink initialized",
		slog.String("url", url),
		slog.String("bucket", bucket))
	return &InfluxSink{client: client, writeAPI: client.WriteAPIBlocking(org, bucket)}
}

// NewInfluxSinkWithAPI wraps an existing write API.
func NewInfluxSinkWithAPI(writeAPI api.WriteAPIBlocking) *InfluxSink {
	return &InfluxSink{writeAPI: writeAPI}
}

func (s *InfluxSink) WriteResults(ctx context.Context, results []models.EnsembleResult) error {
	if len(results) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(results))
	for _, r := range results {
		points = append(points, ResultPoint(r))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		metrics.StoreWrites.WithLabelValues("influxdb", "error").Add(float64(len(points)))
		return fmt.Errorf("[InfluxDB] failed to write %d points: %w", len(points), err)
	}

	metrics.StoreWrites.WithLabelValues("influxdb", "ok").Add(float64(len(points)))
	return nil
}

func ResultPoint(r models.EnsembleResult) *write.Point {
	return influxdb2.NewPoint(
		sentimentMeasurement,
		map[string]string{
			"group_key": r.GroupKey,
			"kind":      string(r.Kind),
			"category":  string(r.SentimentCategory),
		},
		map[string]interface{}{
			"item_id":            r.ItemID,
			"ensemble_score":     r.EnsembleScore,
			"adjusted_score":     r.AdjustedScore,
			"vader_score":        r.VaderScore,
			"textblob_polarity":  r.PolarityScore,
			"bert_score":         r.BertScore,
			"model_agreement":    r.ModelAgreement,
			"confidence_penalty": r.ConfidencePenalty,
		},
		r.CreatedAt,
	)
}

func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
