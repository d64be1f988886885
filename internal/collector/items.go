package collector

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
)

const (
	kindPost    = "t3"
	kindComment = "t1"

	redditSource = "reddit"
)

func createdAt(utc float64) time.Time {
	sec := int64(utc)
	nsec := int64((utc - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// PostItem turns a search hit into a primary item. Title and body are scored
// together.
func PostItem(thing models.RedditThing, groupKey string) models.TextItem {
	d := thing.Data
	text := strings.TrimSpace(d.Title + " " + d.Selftext)

	return models.TextItem{
		ID:        d.ID,
		RawText:   text,
		CreatedAt: createdAt(d.CreatedUTC),
		Kind:      models.PrimaryItem,
		GroupKey:  groupKey,
		Author:    d.Author,
		Source:    redditSource,
	}
}

// CommentItems flattens a comment tree depth first and keeps at most limit
// comments. "more" stubs are not expanded. A limit below zero keeps all.
func CommentItems(things []models.RedditThing, groupKey string, limit int) []models.TextItem {
	var items []models.TextItem

	var walk func(things []models.RedditThing) bool
	walk = func(things []models.RedditThing) bool {
		for _, thing := range things {
			if limit >= 0 && len(items) >= limit {
				return false
			}
			if thing.Kind != kindComment {
				continue
			}

			d := thing.Data
			if body := strings.TrimSpace(d.Body); body != "" && body != "[deleted]" && body != "[removed]" {
				items = append(items, models.TextItem{
					ID:        d.ID,
					RawText:   body,
					CreatedAt: createdAt(d.CreatedUTC),
					Kind:      models.ReplyItem,
					GroupKey:  groupKey,
					Author:    d.Author,
					Source:    redditSource,
					ParentID:  d.ParentID,
				})
			}

			if !walk(replies(d.Replies)) {
				return false
			}
		}
		return true
	}
	walk(things)

	return items
}

// replies decodes the nested listing of a comment. Reddit sends "" when a
// comment has no replies.
func replies(raw json.RawMessage) []models.RedditThing {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var listing models.RedditListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil
	}
	return listing.Data.Children
}
