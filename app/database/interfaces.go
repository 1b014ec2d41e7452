package database

import "errors"

// ErrStore marks any query or insert failure. Callers must treat it as fatal
// for the feed being processed: a store error never means "item is not
// known", and swallowing one risks duplicate notifications on later cycles.
var ErrStore = errors.New("store failure")

type FeedRepository interface {
	FeedExists(hash string) (bool, error)
	// InsertFeedWithItems persists the feed row and its full item list as
	// one transaction, so a crash can never leave a partially-visible feed.
	InsertFeedWithItems(f Feed, items []FeedItem) error
	GetFeeds() ([]Feed, error)
	GetFeedCount() (int, error)
}

type ItemRepository interface {
	// SelectKnownHashes returns which of the candidate hashes already exist,
	// in one round trip.
	SelectKnownHashes(hashes []string) (map[string]bool, error)
	InsertItems(parentHash string, items []FeedItem) error
	GetItems(parentHash string) ([]Item, error)
	GetItemCount() (int, error)
}
