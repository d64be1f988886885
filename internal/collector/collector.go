package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/clients/kafka_client"
	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spacesedan/racepulse/internal/utils"
)

// Posts are kept only if created before the race date plus this window.
const sessionWindow = 3 * 24 * time.Hour

type RedditSource interface {
	SearchPosts(ctx context.Context, subreddit, query string, limit int) ([]models.RedditThing, error)
	FetchComments(ctx context.Context, subreddit, postID string, limit int) ([]models.RedditThing, error)
}

type RaceSource interface {
	Race(ctx context.Context, season, round int) (models.Race, error)
	CompletedRaces(ctx context.Context, season int, now time.Time) ([]models.Race, error)
}

type RaceStore interface {
	SaveRace(ctx context.Context, race models.Race) error
}

type Deduper interface {
	IsProcessed(ctx context.Context, set string, id string) bool
	MarkProcessed(ctx context.Context, set string, ids ...string) error
}

type PublishFunc func(ctx context.Context, topic, key string, payload interface{}) error

type Options struct {
	Reddit       RedditSource
	Races        RaceSource
	Publish      PublishFunc
	Subreddit    string
	PostLimit    int
	CommentLimit int

	// Optional.
	Dedupe    Deduper
	RaceStore RaceStore
	Export    ExportFunc
}

// ExportFunc receives the new items of a session before they are published.
type ExportFunc func(race models.Race, session Session, items []models.TextItem) error

// Collector gathers the Reddit posts and comments of one race session and
// publishes them as text items.
type Collector struct {
	opts Options
}

func New(opts Options) (*Collector, error) {
	if opts.Reddit == nil || opts.Races == nil {
		return nil, errors.New("[Collector] reddit and race sources are required")
	}
	if opts.Subreddit == "" {
		opts.Subreddit = "formula1"
	}
	if opts.PostLimit <= 0 {
		opts.PostLimit = 50
	}
	return &Collector{opts: opts}, nil
}

// Collect looks the race up and returns the new items of the session. Items
// already published by an earlier run are left out.
func (c *Collector) Collect(ctx context.Context, season, round int, session Session) (models.Race, []models.TextItem, error) {
	race, err := c.opts.Races.Race(ctx, season, round)
	if err != nil {
		return models.Race{}, nil, fmt.Errorf("[Collector] failed to look up race: %w", err)
	}

	if c.opts.RaceStore != nil {
		if err := c.opts.RaceStore.SaveRace(ctx, race); err != nil {
			slog.Warn("[Collector] Failed to save race",
				slog.String("race", race.RaceName),
				slog.String("error", err.Error()))
		}
	}

	groupKey := GroupKey(race.Season, race.Round, session)
	slog.Info("[Collector] Collecting session",
		slog.String("race", race.RaceName),
		slog.String("group_key", groupKey),
		slog.String("query", session.SearchQuery()))

	posts, err := c.opts.Reddit.SearchPosts(ctx, c.opts.Subreddit, session.SearchQuery(), c.opts.PostLimit)
	if err != nil {
		return race, nil, fmt.Errorf("[Collector] search failed: %w", err)
	}

	cutoff := race.Date.Add(sessionWindow)
	var items []models.TextItem

	for _, post := range posts {
		if post.Kind != kindPost {
			continue
		}

		item := PostItem(post, groupKey)
		if !race.Date.IsZero() && item.CreatedAt.After(cutoff) {
			slog.Debug("[Collector] Skipping post created after the race weekend",
				slog.String("post_id", item.ID))
			continue
		}
		items = append(items, item)
		metrics.CollectedItems.WithLabelValues(string(models.PrimaryItem)).Inc()

		if c.opts.CommentLimit == 0 {
			continue
		}
		comments, err := c.opts.Reddit.FetchComments(ctx, c.opts.Subreddit, item.ID, c.opts.CommentLimit)
		if err != nil {
			if ctx.Err() != nil {
				return race, nil, ctx.Err()
			}
			slog.Warn("[Collector] Failed to fetch comments, keeping post only",
				slog.String("post_id", item.ID),
				slog.String("error", err.Error()))
			continue
		}

		replies := CommentItems(comments, groupKey, c.opts.CommentLimit)
		items = append(items, replies...)
		metrics.CollectedItems.WithLabelValues(string(models.ReplyItem)).Add(float64(len(replies)))
	}

	return race, c.unseen(ctx, items), nil
}

func (c *Collector) unseen(ctx context.Context, items []models.TextItem) []models.TextItem {
	if c.opts.Dedupe == nil {
		return items
	}

	fresh := items[:0]
	for _, item := range items {
		if c.opts.Dedupe.IsProcessed(ctx, clients.VALKEY_COLLECTED_KEY, item.ID) {
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

// Publish sends items to the text-items topic in chunks and marks each
// published chunk as collected.
func (c *Collector) Publish(ctx context.Context, items []models.TextItem) error {
	if c.opts.Publish == nil {
		return errors.New("[Collector] no publisher configured")
	}

	for _, chunk := range utils.Chunk(items, utils.BATCH_SIZE) {
		if err := c.opts.Publish(ctx, kafka_client.KAFKA_TOPIC_TEXT_ITEMS, chunk[0].GroupKey, chunk); err != nil {
			return fmt.Errorf("[Collector] failed to publish items: %w", err)
		}

		if c.opts.Dedupe != nil {
			ids := make([]string, len(chunk))
			for i, item := range chunk {
				ids[i] = item.ID
			}
			if err := c.opts.Dedupe.MarkProcessed(ctx, clients.VALKEY_COLLECTED_KEY, ids...); err != nil {
				slog.Warn("[Collector] Failed to mark items as collected",
					slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// Run collects one session and publishes what is new.
func (c *Collector) Run(ctx context.Context, season, round int, session Session) (int, error) {
	race, items, err := c.Collect(ctx, season, round, session)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		slog.Info("[Collector] Nothing new to publish",
			slog.String("race", race.RaceName),
			slog.String("session", string(session)))
		return 0, nil
	}

	if c.opts.Export != nil {
		if err := c.opts.Export(race, session, items); err != nil {
			slog.Warn("[Collector] Failed to export items",
				slog.String("race", race.RaceName),
				slog.String("error", err.Error()))
		}
	}

	if err := c.Publish(ctx, items); err != nil {
		return 0, err
	}

	slog.Info("[Collector] Published items",
		slog.String("race", race.RaceName),
		slog.String("session", string(session)),
		slog.Int("count", len(items)))
	return len(items), nil
}

// Stats summarizes a multi-session run.
type Stats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Published  int `json:"published"`
}

func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// RunSeason collects every session of every race of season completed by now
// whose round lies in [startRound, endRound]. An endRound of zero means no
// upper bound. A failed session is counted and the run moves on.
func (c *Collector) RunSeason(ctx context.Context, season int, sessions []Session, startRound, endRound int, now time.Time) (Stats, error) {
	var stats Stats

	races, err := c.opts.Races.CompletedRaces(ctx, season, now)
	if err != nil {
		return stats, fmt.Errorf("[Collector] failed to list completed races: %w", err)
	}

	for _, race := range races {
		if race.Round < startRound || (endRound > 0 && race.Round > endRound) {
			continue
		}

		slog.Info("[Collector] Processing round",
			slog.Int("round", race.Round),
			slog.String("race", race.RaceName))

		for _, session := range sessions {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			stats.Total++
			n, err := c.Run(ctx, race.Season, race.Round, session)
			if err != nil {
				stats.Failed++
				slog.Error("[Collector] Session failed",
					slog.Int("round", race.Round),
					slog.String("session", string(session)),
					slog.String("error", err.Error()))
				continue
			}
			stats.Successful++
			stats.Published += n
		}
	}

	slog.Info("[Collector] Season run finished",
		slog.Int("season", season),
		slog.Int("total", stats.Total),
		slog.Int("successful", stats.Successful),
		slog.Int("failed", stats.Failed),
		slog.Float64("success_rate", stats.SuccessRate()))
	return stats, nil
}

func (s *Stats) add(o Stats) {
	s.Total += o.Total
	s.Successful += o.Successful
	s.Failed += o.Failed
	s.Published += o.Published
}

// FirstSeason is where an all-seasons run starts by default.
const FirstSeason = 2020

// RunSeasons runs RunSeason for every season in [from, to]. A season whose
// schedule cannot be fetched is logged and skipped.
func (c *Collector) RunSeasons(ctx context.Context, from, to int, sessions []Session, now time.Time) (Stats, error) {
	var stats Stats

	for season := from; season <= to; season++ {
		s, err := c.RunSeason(ctx, season, sessions, 1, 0, now)
		stats.add(s)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			slog.Error("[Collector] Season failed",
				slog.Int("season", season),
				slog.String("error", err.Error()))
		}
	}

	return stats, nil
}

// Target names one session of one race weekend.
type Target struct {
	Year    int     `json:"year"`
	Round   int     `json:"round"`
	Session Session `json:"session"`
}

// ParseTargets decodes a JSON list such as
// [{"year":2025,"round":1,"session":"Race"}]. Session names are parsed with
// ParseSession.
func ParseTargets(data []byte) ([]Target, error) {
	var raw []struct {
		Year    int    `json:"year"`
		Round   int    `json:"round"`
		Session string `json:"session"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[Collector] invalid targets: %w", err)
	}

	targets := make([]Target, 0, len(raw))
	for i, r := range raw {
		if r.Year == 0 || r.Round < 1 {
			return nil, fmt.Errorf("[Collector] target %d needs a year and a round", i)
		}
		session, err := ParseSession(r.Session)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Year: r.Year, Round: r.Round, Session: session})
	}
	return targets, nil
}

// RunTargets collects each target in order. Failures are counted, not
// returned.
func (c *Collector) RunTargets(ctx context.Context, targets []Target) (Stats, error) {
	var stats Stats

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Total++
		n, err := c.Run(ctx, t.Year, t.Round, t.Session)
		if err != nil {
			stats.Failed++
			slog.Error("[Collector] Target failed",
				slog.Int("year", t.Year),
				slog.Int("round", t.Round),
				slog.String("session", string(t.Session)),
				slog.String("error", err.Error()))
			continue
		}
		stats.Successful++
		stats.Published += n
	}

	return stats, nil
}
