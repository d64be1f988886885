package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_TIMER = 15

// HealthChecker is implemented by *clients.HuggingFaceClient.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// MonitorClassifierHealth checks the remote classifier every interval and
// stores the outcome in healthy. A zero interval uses HEALTHCHECK_TIMER
// seconds. The first check runs immediately.
func MonitorClassifierHealth(ctx context.Context, checker HealthChecker, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second * HEALTHCHECK_TIMER
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		isHealthy := checker.HealthCheck(ctx)
		if was := healthy.Swap(isHealthy); was != isHealthy {
			if isHealthy {
				slog.Info("[HealthCheck] Classifier is healthy again")
			} else {
				slog.Warn("[HealthCheck] Classifier is unhealthy")
			}
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
