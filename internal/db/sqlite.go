package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS sentiment_results (
	id                    TEXT PRIMARY KEY,
	group_key             TEXT NOT NULL,
	kind                  TEXT NOT NULL,
	created_at            TEXT NOT NULL,
	ensemble_score        REAL NOT NULL,
	sentiment_category    TEXT NOT NULL,
	vader_score           REAL NOT NULL,
	textblob_polarity     REAL NOT NULL,
	textblob_subjectivity REAL NOT NULL,
	bert_score            REAL NOT NULL,
	bert_label            TEXT NOT NULL,
	model_agreement       REAL NOT NULL,
	confidence_penalty    REAL NOT NULL,
	adjusted_score        REAL NOT NULL,
	cleaned_text          TEXT NOT NULL,
	matched_keywords      TEXT NOT NULL,
	degraded_models       TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_results_group ON sentiment_results (group_key, created_at);
CREATE TABLE IF NOT EXISTS races (
	season       INTEGER NOT NULL,
	round        INTEGER NOT NULL,
	race_name    TEXT NOT NULL,
	race_date    TEXT NOT NULL,
	circuit_name TEXT,
	country      TEXT,
	PRIMARY KEY (season, round)
);
`

const upsertResult = `
INSERT INTO sentiment_results (
	id, group_key, kind, created_at, ensemble_score, sentiment_category,
	vader_score, textblob_polarity, textblob_subjectivity, bert_score, bert_label,
	model_agreement, confidence_penalty, adjusted_score, cleaned_text,
	matched_keywords, degraded_models
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	group_key = excluded.group_key,
	kind = excluded.kind,
	created_at = excluded.created_at,
	ensemble_score = excluded.ensemble_score,
	sentiment_category = excluded.sentiment_category,
	vader_score = excluded.vader_score,
	textblob_polarity = excluded.textblob_polarity,
	textblob_subjectivity = excluded.textblob_subjectivity,
	bert_score = excluded.bert_score,
	bert_label = excluded.bert_label,
	model_agreement = excluded.model_agreement,
	confidence_penalty = excluded.confidence_penalty,
	adjusted_score = excluded.adjusted_score,
	cleaned_text = excluded.cleaned_text,
	matched_keywords = excluded.matched_keywords,
	degraded_models = excluded.degraded_models`

const selectResults = `
SELECT id, group_key, kind, created_at, ensemble_score, sentiment_category,
	vader_score, textblob_polarity, textblob_subjectivity, bert_score, bert_label,
	model_agreement, confidence_penalty, adjusted_score, cleaned_text,
	matched_keywords, degraded_models
FROM sentiment_results
WHERE group_key = ?
ORDER BY created_at, id`

// SQLiteStore keeps results and the race calendar in a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[SQLite] open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("[SQLite] apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[SQLite] init schema: %w", err)
	}

	slog.Info("[SQLite] Database ready", slog.String("path", path))
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveResults(ctx context.Context, results []models.EnsembleResult) error {
	if len(results) == 0 {
		return nil
	}

	err := retryOnBusy(ctx, func() error {
		return s.saveResults(ctx, results)
	})
	if err != nil {
		metrics.StoreWrites.WithLabelValues("sqlite", "error").Add(float64(len(results)))
		return err
	}

	metrics.StoreWrites.WithLabelValues("sqlite", "ok").Add(float64(len(results)))
	slog.Debug("[SQLite] Stored sentiment results", slog.Int("count", len(results)))
	return nil
}

func (s *SQLiteStore) saveResults(ctx context.Context, results []models.EnsembleResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[SQLite] begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertResult)
	if err != nil {
		return fmt.Errorf("[SQLite] prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		keywords, err := encodeList(r.MatchedKeywords)
		if err != nil {
			return err
		}
		degraded, err := encodeList(r.DegradedModels)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx,
			r.ItemID, r.GroupKey, string(r.Kind), r.CreatedAt.UTC().Format(time.RFC3339Nano),
			r.EnsembleScore, string(r.SentimentCategory),
			r.VaderScore, r.PolarityScore, r.Subjectivity, r.BertScore, r.BertLabel,
			r.ModelAgreement, r.ConfidencePenalty, r.AdjustedScore, r.CleanedText,
			keywords, degraded,
		); err != nil {
			return fmt.Errorf("[SQLite] upsert %s: %w", r.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[SQLite] commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ResultsByGroup(ctx context.Context, groupKey string) ([]models.EnsembleResult, error) {
	rows, err := s.db.QueryContext(ctx, selectResults, groupKey)
	if err != nil {
		return nil, fmt.Errorf("[SQLite] query results: %w", err)
	}
	defer rows.Close()

	var results []models.EnsembleResult
	for rows.Next() {
		var (
			r                  models.EnsembleResult
			kind, category     string
			createdAt          string
			keywords, degraded string
		)
		if err := rows.Scan(
			&r.ItemID, &r.GroupKey, &kind, &createdAt, &r.EnsembleScore, &category,
			&r.VaderScore, &r.PolarityScore, &r.Subjectivity, &r.BertScore, &r.BertLabel,
			&r.ModelAgreement, &r.ConfidencePenalty, &r.AdjustedScore, &r.CleanedText,
			&keywords, &degraded,
		); err != nil {
			return nil, fmt.Errorf("[SQLite] scan result: %w", err)
		}

		r.Kind = models.ItemKind(kind)
		r.SentimentCategory = models.SentimentCategory(category)
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("[SQLite] bad created_at for %s: %w", r.ItemID, err)
		}
		if err := json.Unmarshal([]byte(keywords), &r.MatchedKeywords); err != nil {
			return nil, fmt.Errorf("[SQLite] bad matched_keywords for %s: %w", r.ItemID, err)
		}
		if err := json.Unmarshal([]byte(degraded), &r.DegradedModels); err != nil {
			return nil, fmt.Errorf("[SQLite] bad degraded_models for %s: %w", r.ItemID, err)
		}
		if len(r.DegradedModels) == 0 {
			r.DegradedModels = nil
		}

		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[SQLite] iterate results: %w", err)
	}

	return results, nil
}

func (s *SQLiteStore) SaveRace(ctx context.Context, race models.Race) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO races (season, round, race_name, race_date, circuit_name, country)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(season, round) DO UPDATE SET
	race_name = excluded.race_name,
	race_date = excluded.race_date,
	circuit_name = excluded.circuit_name,
	country = excluded.country`,
			race.Season, race.Round, race.RaceName, race.Date.UTC().Format(time.RFC3339),
			race.CircuitName, race.Country)
		if err != nil {
			return fmt.Errorf("[SQLite] upsert race %d-%d: %w", race.Season, race.Round, err)
		}
		return nil
	})
}

func (s *SQLiteStore) Races(ctx context.Context, season int) ([]models.Race, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT season, round, race_name, race_date, COALESCE(circuit_name, ''), COALESCE(country, '')
FROM races WHERE season = ? ORDER BY round`, season)
	if err != nil {
		return nil, fmt.Errorf("[SQLite] query races: %w", err)
	}
	defer rows.Close()

	var races []models.Race
	for rows.Next() {
		var (
			r    models.Race
			date string
		)
		if err := rows.Scan(&r.Season, &r.Round, &r.RaceName, &date, &r.CircuitName, &r.Country); err != nil {
			return nil, fmt.Errorf("[SQLite] scan race: %w", err)
		}
		if r.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("[SQLite] bad race_date: %w", err)
		}
		races = append(races, r)
	}
	return races, rows.Err()
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("[SQLite] encode list: %w", err)
	}
	return string(b), nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
