package models

import (
	"encoding/json"
	"time"
)

type RedditPost struct {
	PostID      string    `json:"id"`
	Session     string    `json:"session"`
	Title       string    `json:"title"`
	Selftext    string    `json:"selftext"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created"`
	Permalink   string    `json:"permalink"`
	Author      string    `json:"author"`
	NumComments int       `json:"num_comments"`
}

type RedditComment struct {
	CommentID string    `json:"id"`
	LinkID    string    `json:"link_id"`
	ParentID  string    `json:"parent_id"`
	Body      string    `json:"body"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created"`
	Author    string    `json:"author"`
}

type RedditListing struct {
	Kind string            `json:"kind"`
	Data RedditListingData `json:"data"`
}

type RedditListingData struct {
	After    string        `json:"after"`
	Children []RedditThing `json:"children"`
}

type RedditThing struct {
	Kind string          `json:"kind"`
	Data RedditThingData `json:"data"`
}

// RedditThingData covers the fields shared by posts (t3) and comments (t1).
// Replies is either an empty string or a nested listing.
type RedditThingData struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Author      string          `json:"author"`
	Title       string          `json:"title"`
	Selftext    string          `json:"selftext"`
	Body        string          `json:"body"`
	Score       int             `json:"score"`
	CreatedUTC  float64         `json:"created_utc"`
	Permalink   string          `json:"permalink"`
	NumComments int             `json:"num_comments"`
	LinkID      string          `json:"link_id"`
	ParentID    string          `json:"parent_id"`
	Replies     json.RawMessage `json:"replies"`
}
