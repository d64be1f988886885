package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHFClient(url string) *HuggingFaceClient {
	c := NewHuggingFaceClient(url, &http.Client{Timeout: 5 * time.Second})
	c.backoff = time.Millisecond
	return c
}

func TestHuggingFaceClient_ClassifyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ClassificationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"great race", "awful"}, req.Inputs)
		assert.Equal(t, USER_AGENT, r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`[
			[{"label":"positive","score":0.9},{"label":"neutral","score":0.08},{"label":"negative","score":0.02}],
			[{"label":"negative","score":0.8},{"label":"neutral","score":0.15},{"label":"positive","score":0.05}]
		]`))
	}))
	defer srv.Close()

	out, err := newTestHFClient(srv.URL).ClassifyBatch(context.Background(), []string{"great race", "awful"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "positive", out[0][0].Label)
	assert.InDelta(t, 0.9, out[0][0].Probability, 1e-9)
	assert.Equal(t, "negative", out[1][0].Label)
}

func TestHuggingFaceClient_RetriesServerErrorsWithBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "retry me")

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[[{"label":"neutral","score":1}]]`))
	}))
	defer srv.Close()

	probs, err := newTestHFClient(srv.URL).Classify(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "neutral", probs[0].Label)
}

func TestHuggingFaceClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestHFClient(srv.URL).Classify(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(MAX_RETRIES), calls.Load())
}

func TestHuggingFaceClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestHFClient(srv.URL).Classify(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHuggingFaceClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestHFClient(srv.URL)
	for i := 0; i < breakerTripAfter; i++ {
		_, err := c.Classify(context.Background(), "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	_, err := c.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(breakerTripAfter), calls.Load())
}

func TestHuggingFaceClient_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestHFClient(srv.URL).Classify(context.Background(), "x")
	assert.ErrorIs(t, err, errEmptyClassification)
}

func TestHuggingFaceClient_HealthCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusMethodNotAllowed)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := newTestHFClient(srv.URL)
	assert.True(t, c.HealthCheck(context.Background()))

	status.Store(http.StatusBadGateway)
	assert.False(t, c.HealthCheck(context.Background()))

	srv.Close()
	assert.False(t, c.HealthCheck(context.Background()))
}
