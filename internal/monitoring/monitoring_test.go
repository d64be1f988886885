package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakyChecker struct {
	calls atomic.Int32
}

// Healthy on odd calls.
func (f *flakyChecker) HealthCheck(context.Context) bool {
	return f.calls.Add(1)%2 == 1
}

func TestMonitorClassifierHealth(t *testing.T) {
	checker := &flakyChecker{}
	var healthy atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		MonitorClassifierHealth(ctx, checker, &healthy, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return checker.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, checker.calls.Load()%2 == 1, healthy.Load())
}

type fakeCounter struct{ n atomic.Int64 }

func (f *fakeCounter) Scored() int64 { return f.n.Load() }

func TestReportProgress_StopsOnCancel(t *testing.T) {
	counter := &fakeCounter{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ReportProgress(ctx, counter, time.Millisecond)
		close(done)
	}()

	counter.n.Add(10)
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReportProgress did not return after cancel")
	}
}

func TestReportProgress_ZeroIntervalReturns(t *testing.T) {
	ReportProgress(context.Background(), &fakeCounter{}, 0)
}
