package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	REDDIT_AUTH_URL = "https://www.reddit.com/api/v1/access_token"
	REDDIT_API_URL  = "https://oauth.reddit.com"

	// Reddit allows 100 queries per minute per OAuth client.
	REDDIT_REQUEST_INTERVAL = 600 * time.Millisecond
)

var (
	redditClientInstance *RedditClient
	redditClientOnce     sync.Once
)

var ErrRedditRetriesExhausted = errors.New("max retries reached")

type RedditClient struct {
	Config  *clientcredentials.Config
	Client  *http.Client
	BaseURL string

	mu      sync.Mutex
	limiter *rate.Limiter
	backoff time.Duration
}

func GetRedditClient() *RedditClient {
	redditClientOnce.Do(func() {
		oauthConf := &clientcredentials.Config{
			ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
			ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
			TokenURL:     REDDIT_AUTH_URL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}

		redditClientInstance = &RedditClient{
			Config:  oauthConf,
			Client:  oauthConf.Client(context.Background()),
			BaseURL: REDDIT_API_URL,
			limiter: rate.NewLimiter(rate.Every(REDDIT_REQUEST_INTERVAL), 1),
			backoff: INITIAL_BACKOFF,
		}
	})

	return redditClientInstance
}

// NewRedditClient builds a client around an already authenticated
// http.Client. Requests are paced and retried with backoff; zero disables
// both. 401s are not refreshed since there is no token config.
func NewRedditClient(client *http.Client, baseURL string, backoff time.Duration) *RedditClient {
	return &RedditClient{
		Client:  client,
		BaseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(backoff), 1),
		backoff: backoff,
	}
}

func (rc *RedditClient) RefreshClient() {
	if rc.Config == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Client = rc.Config.Client(context.Background())
}

func (rc *RedditClient) httpClient() *http.Client {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.Client
}

// SearchPosts runs one search of subreddit restricted to the past week,
// sorted by top. Only the first page is fetched.
func (rc *RedditClient) SearchPosts(ctx context.Context, subreddit, query string, limit int) ([]models.RedditThing, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("restrict_sr", "1")
	params.Set("sort", "top")
	params.Set("t", "week")
	params.Set("limit", strconv.Itoa(limit))

	body, err := rc.get(ctx, fmt.Sprintf("/r/%s/search", subreddit), params)
	if err != nil {
		return nil, err
	}

	var listing models.RedditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("[RedditClient] failed to decode search listing: %w", err)
	}
	return listing.Data.Children, nil
}

// FetchComments returns the top level comment things of a post, replies
// nested inside. "more" stubs are left as they are.
func (rc *RedditClient) FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.RedditThing, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "top")

	body, err := rc.get(ctx, fmt.Sprintf("/r/%s/comments/%s", subreddit, postID), params)
	if err != nil {
		return nil, err
	}

	// The endpoint answers with two listings: the post and its comments.
	var listings []models.RedditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("[RedditClient] failed to decode comment listings: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}
	return listings[1].Data.Children, nil
}

func (rc *RedditClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := rc.BaseURL + path + "?" + params.Encode()
	backoff := rc.backoff
	refreshed := false

	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if err := rc.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("[RedditClient] failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", USER_AGENT)

		resp, err := rc.httpClient().Do(req)
		if err != nil {
			slog.Warn("[RedditClient] Request failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				if readErr != nil {
					return nil, fmt.Errorf("[RedditClient] failed to read response: %w", readErr)
				}
				return body, nil
			case resp.StatusCode == http.StatusUnauthorized && !refreshed:
				slog.Warn("[RedditClient] Token expired - Refreshing and Retrying...")
				rc.RefreshClient()
				refreshed = true
				continue
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				slog.Warn("[RedditClient] Retrying request",
					slog.Int("status", resp.StatusCode),
					slog.Int("attempt", attempt),
					slog.Duration("backoff", backoff))
			default:
				return nil, fmt.Errorf("[RedditClient] unexpected status code %d for %s", resp.StatusCode, path)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return nil, fmt.Errorf("[RedditClient] %w: %s", ErrRedditRetriesExhausted, path)
}
