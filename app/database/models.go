package database

import (
	"time"
)

// Feed represents a feed record. The content hash is the primary key: the
// same feed re-fetched across cycles maps onto the same row.
type Feed struct {
	Hash      string
	Title     string
	Link      string
	CreatedAt time.Time
}

// FeedItem is the insert payload for one item, already hashed.
type FeedItem struct {
	Hash        string
	Title       string
	Link        string
	Description string
	PubDate     string
}

// Item represents a stored feed item row.
type Item struct {
	Hash        string
	ParentHash  string
	Title       string
	Link        string
	Description string
	PubDate     string
	CreatedAt   time.Time
}
