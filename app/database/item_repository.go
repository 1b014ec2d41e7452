package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// ItemRepositoryImpl handles database operations for feed items.
type ItemRepositoryImpl struct {
	db *DB
}

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

func (r *ItemRepositoryImpl) SelectKnownHashes(hashes []string) (map[string]bool, error) {
	known := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return known, nil
	}

	rows, err := r.db.Query(`
		SELECT hash FROM feed_items WHERE hash = ANY($1)
	`, pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select known hashes: %v", ErrStore, err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("%w: failed to scan hash row: %v", ErrStore, err)
		}
		known[hash] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating hash rows: %v", ErrStore, err)
	}

	return known, nil
}

func (r *ItemRepositoryImpl) InsertItems(parentHash string, items []FeedItem) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStore, err)
	}
	defer tx.Rollback()

	if err := insertItemsTx(tx, parentHash, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit item insert: %v", ErrStore, err)
	}

	return nil
}

// insertItemsTx writes item rows inside an open transaction; shared by the
// new-feed path (feed row plus items) and the new-item path.
func insertItemsTx(tx *sql.Tx, parentHash string, items []FeedItem) error {
	for _, item := range items {
		_, err := tx.Exec(`
			INSERT INTO feed_items (hash, parent_hash, title, link, description, pub_date)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.Hash, parentHash, item.Title, item.Link, item.Description, item.PubDate)
		if err != nil {
			return fmt.Errorf("%w: failed to insert item: %v", ErrStore, err)
		}
	}
	return nil
}

func (r *ItemRepositoryImpl) GetItems(parentHash string) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT hash, parent_hash, COALESCE(title, ''), COALESCE(link, ''),
		       COALESCE(description, ''), COALESCE(pub_date, ''), created_at
		FROM feed_items
		WHERE parent_hash = $1
		ORDER BY created_at
	`, parentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get items: %v", ErrStore, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		err := rows.Scan(&item.Hash, &item.ParentHash, &item.Title, &item.Link,
			&item.Description, &item.PubDate, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan item row: %v", ErrStore, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating item rows: %v", ErrStore, err)
	}

	return items, nil
}

func (r *ItemRepositoryImpl) GetItemCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feed_items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get item count: %v", ErrStore, err)
	}
	return count, nil
}
