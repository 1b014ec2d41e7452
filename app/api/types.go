package api

import (
	"github.com/lysyi3m/rss-herald/app/database"
	"github.com/lysyi3m/rss-herald/app/feed"
)

type Handler struct {
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	configCache *feed.ConfigCache
}
