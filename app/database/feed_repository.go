package database

import (
	"fmt"
)

// FeedRepositoryImpl handles database operations for feeds.
type FeedRepositoryImpl struct {
	db *DB
}

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

func (r *FeedRepositoryImpl) FeedExists(hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM feeds WHERE hash = $1)
	`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check feed existence: %v", ErrStore, err)
	}
	return exists, nil
}

func (r *FeedRepositoryImpl) InsertFeedWithItems(f Feed, items []FeedItem) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStore, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO feeds (hash, title, link)
		VALUES ($1, $2, $3)
	`, f.Hash, f.Title, f.Link)
	if err != nil {
		return fmt.Errorf("%w: failed to insert feed: %v", ErrStore, err)
	}

	if err := insertItemsTx(tx, f.Hash, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit feed insert: %v", ErrStore, err)
	}

	return nil
}

func (r *FeedRepositoryImpl) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT hash, title, link, created_at
		FROM feeds
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get feeds: %v", ErrStore, err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.Hash, &f.Title, &f.Link, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan feed row: %v", ErrStore, err)
		}
		feeds = append(feeds, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating feed rows: %v", ErrStore, err)
	}

	return feeds, nil
}

func (r *FeedRepositoryImpl) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get feed count: %v", ErrStore, err)
	}
	return count, nil
}
