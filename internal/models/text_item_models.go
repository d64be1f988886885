package models

import "time"

type ItemKind string

const (
	PrimaryItem ItemKind = "PRIMARY_ITEM"
	ReplyItem   ItemKind = "REPLY_ITEM"
)

func (k ItemKind) Valid() bool {
	return k == PrimaryItem || k == ReplyItem
}

// TextItem is a single post or reply waiting to be scored. GroupKey ties it
// to a race session, e.g. "2024-7-RACE".
type TextItem struct {
	ID        string    `json:"id"`
	RawText   string    `json:"raw_text"`
	CreatedAt time.Time `json:"created_at"`
	Kind      ItemKind  `json:"kind"`
	GroupKey  string    `json:"group_key"`

	Author   string `json:"author,omitempty"`
	Source   string `json:"source,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}
