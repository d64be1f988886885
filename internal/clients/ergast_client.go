package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
)

const ERGAST_API_URL = "https://api.jolpi.ca/ergast/f1"

var (
	ergastInstance *ErgastClient
	ergastOnce     sync.Once
)

var ErrRaceNotFound = errors.New("race not found")

// ErgastClient reads the F1 calendar from the Jolpica mirror of the Ergast
// API.
type ErgastClient struct {
	Client  *http.Client
	BaseURL string
}

func GetErgastClient() *ErgastClient {
	ergastOnce.Do(func() {
		ergastInstance = NewErgastClient(&http.Client{Timeout: 15 * time.Second}, ERGAST_API_URL)
	})
	return ergastInstance
}

func NewErgastClient(client *http.Client, baseURL string) *ErgastClient {
	return &ErgastClient{Client: client, BaseURL: baseURL}
}

// Race looks up one race. A zero season means the next race of the current
// season; a zero round means the last race of season.
func (ec *ErgastClient) Race(ctx context.Context, season, round int) (models.Race, error) {
	var path string
	switch {
	case season != 0 && round != 0:
		path = fmt.Sprintf("/%d/%d.json", season, round)
	case season != 0:
		path = fmt.Sprintf("/%d/last.json", season)
	default:
		path = "/current/next.json"
	}

	races, err := ec.fetch(ctx, path)
	if err != nil {
		return models.Race{}, err
	}
	if len(races) == 0 {
		return models.Race{}, fmt.Errorf("[ErgastClient] %w: %s", ErrRaceNotFound, path)
	}
	return races[0], nil
}

// CompletedRaces returns the races of season dated on or before now.
func (ec *ErgastClient) CompletedRaces(ctx context.Context, season int, now time.Time) ([]models.Race, error) {
	races, err := ec.fetch(ctx, fmt.Sprintf("/%d.json", season))
	if err != nil {
		return nil, err
	}

	var completed []models.Race
	for _, r := range races {
		if !r.Date.After(now) {
			completed = append(completed, r)
		}
	}
	return completed, nil
}

func (ec *ErgastClient) fetch(ctx context.Context, path string) ([]models.Race, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ec.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("[ErgastClient] failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := ec.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[ErgastClient] request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[ErgastClient] failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[ErgastClient] unexpected status code %d for %s", resp.StatusCode, path)
	}

	var payload models.ErgastResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Error("[ErgastClient] Failed to unmarshal response",
			slog.String("path", path),
			getPreview(body))
		return nil, fmt.Errorf("[ErgastClient] failed to unmarshal response: %w", err)
	}

	races := make([]models.Race, 0, len(payload.MRData.RaceTable.Races))
	for _, r := range payload.MRData.RaceTable.Races {
		race, err := toRace(r)
		if err != nil {
			slog.Warn("[ErgastClient] Skipping malformed race",
				slog.String("race", r.RaceName),
				slog.String("error", err.Error()))
			continue
		}
		races = append(races, race)
	}
	return races, nil
}

func toRace(r models.ErgastRace) (models.Race, error) {
	season, err := strconv.Atoi(r.Season)
	if err != nil {
		return models.Race{}, fmt.Errorf("bad season %q: %w", r.Season, err)
	}
	round, err := strconv.Atoi(r.Round)
	if err != nil {
		return models.Race{}, fmt.Errorf("bad round %q: %w", r.Round, err)
	}

	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return models.Race{}, fmt.Errorf("bad date %q: %w", r.Date, err)
	}
	if r.Time != "" {
		if withTime, err := time.Parse(time.RFC3339, r.Date+"T"+r.Time); err == nil {
			date = withTime
		}
	}

	return models.Race{
		Season:      season,
		Round:       round,
		RaceName:    r.RaceName,
		Date:        date.UTC(),
		CircuitName: r.Circuit.CircuitName,
		Country:     r.Circuit.Location.Country,
	}, nil
}
