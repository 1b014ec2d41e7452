package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-herald/app/database"
	"github.com/lysyi3m/rss-herald/app/feed"
	"github.com/lysyi3m/rss-herald/app/notify"
)

// ProcessFeedTask runs the full pipeline for one feed: fetch, sniff, decode,
// hash, diff against the store, notify, and persist. Persistence of an item
// is authorized only after every channel delivered it, so an announcement is
// never silently lost; an item held back by a delivery failure stays unknown
// to the store and is retried as new on the next cycle.
type ProcessFeedTask struct {
	Task
	FeedConfig *feed.Config
	httpClient *http.Client
	feedRepo   database.FeedRepository
	itemRepo   database.ItemRepository
	channels   []notify.Channel
	userAgent  string
}

func NewProcessFeedTask(feedName string, feedConfig *feed.Config, httpClient *http.Client,
	feedRepo database.FeedRepository, itemRepo database.ItemRepository,
	channels []notify.Channel, userAgent string) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:       NewTask(TaskTypeProcessFeed, feedName),
		FeedConfig: feedConfig,
		httpClient: httpClient,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
		channels:   channels,
		userAgent:  userAgent,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	data, err := t.fetchFeed(ctx, t.FeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	dialect := feed.DetectDialect(data)
	if dialect == feed.DialectUnknown {
		return fmt.Errorf("%w: cannot classify document from %s",
			feed.ErrUnsupportedDialect, t.FeedConfig.URL)
	}

	parsed, err := feed.Decode(data, dialect, t.FeedConfig.Policy)
	if err != nil {
		return fmt.Errorf("failed to decode feed: %w", err)
	}

	feedHash := feed.FeedHash(parsed)

	exists, err := t.feedRepo.FeedExists(feedHash)
	if err != nil {
		return err
	}

	var newCount, heldCount int
	if exists {
		newCount, heldCount, err = t.processKnownFeed(ctx, feedHash, parsed)
	} else {
		newCount, heldCount, err = t.processUnknownFeed(ctx, feedHash, parsed)
	}
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "ProcessFeed",
		"feed", t.FeedName,
		"dialect", dialect.String(),
		"duration", t.GetDuration(),
		"total", len(parsed.Items),
		"new", newCount,
		"held", heldCount)

	return nil
}

// processUnknownFeed handles a feed whose hash the store has never seen. To
// confirm the channels actually work before committing anything, only the
// latest item (decode order) is pushed through them; on all-channel success
// the feed row and its complete item list are persisted as one transaction.
// On any delivery failure nothing is persisted, and the feed goes through
// the same validation again on the next poll.
func (t *ProcessFeedTask) processUnknownFeed(ctx context.Context, feedHash string, parsed *feed.Feed) (int, int, error) {
	slog.Debug("New feed", "feed", t.FeedName, "hash", feedHash, "title", parsed.Title)

	if len(parsed.Items) > 0 {
		latest := parsed.Items[0]
		if !t.deliverAll(ctx, latest) {
			slog.Warn("Holding back new feed, notification delivery failed", "feed", t.FeedName)
			return 0, len(parsed.Items), nil
		}
	}

	seen := make(map[string]bool, len(parsed.Items))
	items := make([]database.FeedItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		hash := feed.ItemHash(item, t.FeedConfig.Policy)
		if seen[hash] {
			continue
		}
		seen[hash] = true
		items = append(items, t.toFeedItem(item, hash))
	}

	err := t.feedRepo.InsertFeedWithItems(database.Feed{
		Hash:  feedHash,
		Title: parsed.Title,
		Link:  parsed.Link,
	}, items)
	if err != nil {
		return 0, 0, err
	}

	return len(items), 0, nil
}

// processKnownFeed computes the new-item set as pure hash set-difference
// against the store, order preserved from the document. Each new item is
// gated independently: a delivery failure holds back that one item without
// blocking its siblings.
func (t *ProcessFeedTask) processKnownFeed(ctx context.Context, feedHash string, parsed *feed.Feed) (int, int, error) {
	slog.Debug("Known feed", "feed", t.FeedName, "hash", feedHash, "title", parsed.Title)

	hashes := make([]string, len(parsed.Items))
	for i, item := range parsed.Items {
		hashes[i] = feed.ItemHash(item, t.FeedConfig.Policy)
	}

	known, err := t.itemRepo.SelectKnownHashes(hashes)
	if err != nil {
		return 0, 0, err
	}

	newCount, heldCount := 0, 0
	for i, item := range parsed.Items {
		if known[hashes[i]] {
			continue
		}

		if !t.deliverAll(ctx, item) {
			heldCount++
			continue
		}

		err := t.itemRepo.InsertItems(feedHash, []database.FeedItem{t.toFeedItem(item, hashes[i])})
		if err != nil {
			return newCount, heldCount, err
		}
		// Guards against the same item appearing twice in one document.
		known[hashes[i]] = true
		newCount++
	}

	return newCount, heldCount, nil
}

// deliverAll pushes one item through every configured channel in order. All
// channels must succeed; the first failure aborts the rest so the item stays
// unpersisted and is retried on the next cycle.
func (t *ProcessFeedTask) deliverAll(ctx context.Context, item feed.Item) bool {
	n := notify.Notification{
		Title:   item.Title,
		Link:    item.Link,
		Summary: item.SummaryOrContent(),
		Date:    item.Updated,
	}

	for _, ch := range t.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			slog.Warn("Notification delivery failed",
				"feed", t.FeedName, "channel", ch.Name(), "link", n.Link, "error", err)
			return false
		}
	}

	return true
}

func (t *ProcessFeedTask) toFeedItem(item feed.Item, hash string) database.FeedItem {
	return database.FeedItem{
		Hash:        hash,
		Title:       item.Title,
		Link:        item.Link,
		Description: item.SummaryOrContent(),
		PubDate:     item.Updated,
	}
}

func (t *ProcessFeedTask) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	return data, nil
}
