package monitoring

import (
	"context"
	"log/slog"
	"time"
)

// Counter is implemented by *sentiment.Engine.
type Counter interface {
	Scored() int64
}

// ReportProgress logs how many items were scored in each interval until ctx
// is done. Quiet intervals are not logged.
func ReportProgress(ctx context.Context, counter Counter, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := counter.Scored()
	for {
		select {
		case <-ctx.Done():
			slog.Info("[Progress] Final count", slog.Int64("scored", counter.Scored()))
			return
		case <-ticker.C:
			now := counter.Scored()
			if now == last {
				continue
			}
			slog.Info("[Progress] Scoring progress",
				slog.Int64("scored", now),
				slog.Int64("since_last", now-last),
				slog.Float64("per_second", float64(now-last)/interval.Seconds()))
			last = now
		}
	}
}
