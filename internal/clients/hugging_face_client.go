package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spacesedan/racepulse/internal/sentiment"
)

var (
	huggingFaceInstance *HuggingFaceClient
	huggingFaceOnce     sync.Once
)

const (
	healthCheckTimeout = 5 * time.Second

	breakerTripAfter = 3
	breakerCooldown  = 30 * time.Second
)

var errEmptyClassification = errors.New("classification response was empty")

// HuggingFaceClient talks to a hosted text-classification endpoint and is
// the remote backend of the neural scorer.
type HuggingFaceClient struct {
	Client   *http.Client
	Endpoint string

	backoff time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewHuggingFaceClient builds a client whose classification calls go through
// a circuit breaker. After breakerTripAfter consecutive failed calls the
// endpoint is not contacted for breakerCooldown and calls fail with
// gobreaker.ErrOpenState, so the neural scorer degrades without waiting out
// the retry backoff on every item.
func NewHuggingFaceClient(endpoint string, client *http.Client) *HuggingFaceClient {
	return &HuggingFaceClient{
		Client:   client,
		Endpoint: endpoint,
		backoff:  INITIAL_BACKOFF,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "huggingface",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerTripAfter
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("[HuggingFaceClient] Circuit breaker state changed",
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
	}
}

func GetHuggingFaceClient(endpoint string) *HuggingFaceClient {
	var timeout time.Duration
	env := os.Getenv("APP_ENV")
	if env == "production" {
		timeout = 10 * time.Second
	} else {
		timeout = 60 * time.Second
	}
	huggingFaceOnce.Do(func() {
		slog.Info("[HuggingFaceClient] Initializing Client",
			slog.Duration("timeout", timeout),
			slog.String("endpoint", endpoint),
			slog.String("env", env))
		huggingFaceInstance = NewHuggingFaceClient(endpoint, &http.Client{Timeout: timeout})
	})
	return huggingFaceInstance
}

// DoWithRetry retries transport errors and 5xx responses with a doubling
// backoff. The request body is rewound before every retry.
func (h *HuggingFaceClient) DoWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := h.backoff

	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", bodyErr)
			}
			req.Body = body
		}

		resp, err = h.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		slog.Warn("[HuggingFaceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if resp != nil {
			resp.Body.Close()
		}

		if attempt == MAX_RETRIES-1 {
			break
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	if err == nil {
		err = fmt.Errorf("giving up: %s", errMsg(nil, resp))
	}
	return nil, err
}

// Classify implements sentiment.Classifier against the remote endpoint.
func (h *HuggingFaceClient) Classify(ctx context.Context, text string) ([]sentiment.ClassProbability, error) {
	batch, err := h.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch[0], nil
}

func (h *HuggingFaceClient) ClassifyBatch(ctx context.Context, texts []string) ([][]sentiment.ClassProbability, error) {
	var result models.ClassificationResponse
	start := time.Now()

	_, err := h.breaker.Execute(func() (interface{}, error) {
		return nil, h.postJSON(ctx, h.Endpoint, models.ClassificationRequest{Inputs: texts}, &result)
	})
	if err != nil {
		slog.Error("[HuggingFaceClient] Classification request failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, err
	}

	if len(result) != len(texts) {
		return nil, fmt.Errorf("[HuggingFaceClient] %w: got %d results for %d inputs",
			errEmptyClassification, len(result), len(texts))
	}

	out := make([][]sentiment.ClassProbability, len(result))
	for i, scores := range result {
		probs := make([]sentiment.ClassProbability, len(scores))
		for j, s := range scores {
			probs[j] = sentiment.ClassProbability{Label: s.Label, Probability: s.Score}
		}
		out[i] = probs
	}

	slog.Debug("[HuggingFaceClient] Classification request successful",
		slog.Int("inputs", len(texts)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

// HealthCheck reports whether the endpoint answers at all. Any status below
// 500 counts as healthy since most inference servers reject a bare GET.
func (h *HuggingFaceClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Endpoint, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := h.Client.Do(req)
	if err != nil {
		slog.Debug("[HuggingFaceClient] Health check failed",
			slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < 500
}

func (h *HuggingFaceClient) postJSON(ctx context.Context, endpoint string, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed to marshal input",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed to build request",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := h.DoWithRetry(req)
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed request after retries",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed to read response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		slog.Error("[HuggingFaceClient] Unexpected status",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			getPreview(respBody))
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
