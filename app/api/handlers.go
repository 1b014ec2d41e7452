package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-herald/app/cfg"
	"github.com/lysyi3m/rss-herald/app/database"
	"github.com/lysyi3m/rss-herald/app/feed"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		configCache: configCache,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	if itemCount, err := h.itemRepo.GetItemCount(); err == nil {
		health["items"] = itemCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	storedFeeds, err := h.feedRepo.GetFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(storedFeeds))
	for _, f := range storedFeeds {
		feedInfo := map[string]interface{}{
			"hash":       f.Hash,
			"title":      f.Title,
			"link":       f.Link,
			"created_at": f.CreatedAt.Format(time.RFC3339),
		}

		if items, err := h.itemRepo.GetItems(f.Hash); err == nil {
			feedInfo["item_count"] = len(items)
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) GetFeedItems(c *gin.Context) {
	hash := c.Param("hash")
	if hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed hash parameter"})
		return
	}

	exists, err := h.feedRepo.FeedExists(hash)
	if err != nil {
		slog.Error("Database error", "operation", "feed_exists", "hash", hash, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	storedItems, err := h.itemRepo.GetItems(hash)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "hash", hash, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(storedItems))
	for _, item := range storedItems {
		items = append(items, map[string]interface{}{
			"hash":        item.Hash,
			"title":       item.Title,
			"link":        item.Link,
			"description": item.Description,
			"pub_date":    item.PubDate,
			"created_at":  item.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feed":  hash,
		"items": items,
		"total": len(items),
	})
}
