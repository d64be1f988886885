package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
)

var ErrMissingColumn = errors.New("required column missing")

// Options controls how rows become items. GroupKey overrides the group of
// every row; when empty the row's session column is used.
type Options struct {
	GroupKey string
}

var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseCreated(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadFile picks the reader by extension: .csv, or .json/.jsonl for
// TextItem documents.
func ReadFile(path string, opts Options) ([]models.TextItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[Ingest] failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f, opts)
	case ".json", ".jsonl":
		return ReadJSON(f, opts)
	default:
		return nil, fmt.Errorf("[Ingest] unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads the collector's export format. A row with a comment body is
// a reply; otherwise it is a post whose title and selftext are scored.
func ReadCSV(r io.Reader, opts Options) ([]models.TextItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("[Ingest] failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := columns["id"]; !ok {
		return nil, fmt.Errorf("[Ingest] %w: id", ErrMissingColumn)
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var items []models.TextItem
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("[Ingest] malformed CSV at line %d: %w", line, err)
		}

		id := field(row, "id")
		if id == "" {
			slog.Warn("[Ingest] Skipping row without id", slog.Int("line", line))
			continue
		}

		item := models.TextItem{
			ID:       id,
			Kind:     models.PrimaryItem,
			GroupKey: opts.GroupKey,
			Author:   field(row, "author"),
			Source:   "csv",
			ParentID: field(row, "parent_id"),
		}
		if item.GroupKey == "" {
			item.GroupKey = strings.ToUpper(field(row, "session"))
		}

		if body := field(row, "body"); body != "" {
			item.Kind = models.ReplyItem
			item.RawText = body
		} else {
			item.RawText = strings.TrimSpace(field(row, "title") + " " + field(row, "selftext"))
		}

		if created := field(row, "created"); created != "" {
			t, err := parseCreated(created)
			if err != nil {
				slog.Warn("[Ingest] Bad created timestamp, leaving it empty",
					slog.String("id", id),
					slog.String("error", err.Error()))
			}
			item.CreatedAt = t
		}

		items = append(items, item)
	}

	return items, nil
}

// ReadJSON accepts a JSON array of items or a stream of item objects, as
// written one per line by jq -c.
func ReadJSON(r io.Reader, opts Options) ([]models.TextItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("[Ingest] failed to read JSON: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []models.TextItem
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("[Ingest] malformed JSON array: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		for {
			var item models.TextItem
			if err := dec.Decode(&item); err == io.EOF {
				break
			} else if err != nil {
				return nil, fmt.Errorf("[Ingest] malformed item %d: %w", len(raw), err)
			}
			raw = append(raw, item)
		}
	}

	items := make([]models.TextItem, 0, len(raw))
	for _, item := range raw {
		if opts.GroupKey != "" {
			item.GroupKey = opts.GroupKey
		}
		if item.Kind == "" {
			item.Kind = models.PrimaryItem
		}
		if item.ID == "" || !item.Kind.Valid() {
			slog.Warn("[Ingest] Skipping malformed item",
				slog.String("id", item.ID),
				slog.String("kind", string(item.Kind)))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// CSVFileName is the export name used by the collector for a race session,
// e.g. "f1_monaco_grand_prix_race_reddit.csv".
func CSVFileName(raceName, session string) string {
	safe := strings.ToLower(strings.ReplaceAll(raceName, " ", "_"))
	return fmt.Sprintf("f1_%s_%s_reddit.csv", safe, strings.ToLower(session))
}

var csvHeader = []string{
	"id", "session", "title", "selftext", "score", "created", "permalink",
	"author", "num_comments", "link_id", "parent_id", "body",
}

// WriteCSV writes items in the collector's export format. Post text goes to
// selftext and reply text to body, so ReadCSV reads the same items back.
func WriteCSV(w io.Writer, items []models.TextItem, session string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("[Ingest] failed to write CSV header: %w", err)
	}

	for _, item := range items {
		row := make([]string, len(csvHeader))
		row[0] = item.ID
		row[1] = session
		if !item.CreatedAt.IsZero() {
			row[5] = item.CreatedAt.UTC().Format(time.RFC3339)
		}
		row[7] = item.Author
		row[10] = item.ParentID
		if item.Kind == models.ReplyItem {
			row[11] = item.RawText
		} else {
			row[3] = item.RawText
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("[Ingest] failed to write row %s: %w", item.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
