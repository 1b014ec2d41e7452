package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lysyi3m/rss-herald/app/database"
	"github.com/lysyi3m/rss-herald/app/feed"
	"github.com/lysyi3m/rss-herald/app/notify"
)

const rssTwoItems = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Release Notes</title>
    <link>https://example.com/releases</link>
    <item>
      <title>Version 2.0</title>
      <link>https://example.com/releases/2.0</link>
      <description>Second major release</description>
      <pubDate>Sat, 30 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Version 1.0</title>
      <link>https://example.com/releases/1.0</link>
      <description>First release</description>
      <pubDate>Mon, 05 Jan 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

// Mock implementations for testing

type MockFeedRepository struct {
	feeds         map[string]database.Feed
	insertedItems []database.FeedItem
	failExists    bool
	failInsert    bool
}

func NewMockFeedRepository() *MockFeedRepository {
	return &MockFeedRepository{feeds: make(map[string]database.Feed)}
}

func (m *MockFeedRepository) FeedExists(hash string) (bool, error) {
	if m.failExists {
		return false, fmt.Errorf("%w: connection refused", database.ErrStore)
	}
	_, ok := m.feeds[hash]
	return ok, nil
}

func (m *MockFeedRepository) InsertFeedWithItems(f database.Feed, items []database.FeedItem) error {
	if m.failInsert {
		return fmt.Errorf("%w: connection refused", database.ErrStore)
	}
	m.feeds[f.Hash] = f
	m.insertedItems = append(m.insertedItems, items...)
	return nil
}

func (m *MockFeedRepository) GetFeeds() ([]database.Feed, error) {
	feeds := make([]database.Feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		feeds = append(feeds, f)
	}
	return feeds, nil
}

func (m *MockFeedRepository) GetFeedCount() (int, error) {
	return len(m.feeds), nil
}

type MockItemRepository struct {
	known         map[string]bool
	insertedItems []database.FeedItem
	failSelect    bool
	failInsert    bool
}

func NewMockItemRepository() *MockItemRepository {
	return &MockItemRepository{known: make(map[string]bool)}
}

func (m *MockItemRepository) SelectKnownHashes(hashes []string) (map[string]bool, error) {
	if m.failSelect {
		return nil, fmt.Errorf("%w: connection refused", database.ErrStore)
	}
	result := make(map[string]bool)
	for _, h := range hashes {
		if m.known[h] {
			result[h] = true
		}
	}
	return result, nil
}

func (m *MockItemRepository) InsertItems(parentHash string, items []database.FeedItem) error {
	if m.failInsert {
		return fmt.Errorf("%w: connection refused", database.ErrStore)
	}
	for _, item := range items {
		m.known[item.Hash] = true
	}
	m.insertedItems = append(m.insertedItems, items...)
	return nil
}

func (m *MockItemRepository) GetItems(parentHash string) ([]database.Item, error) {
	return nil, nil
}

func (m *MockItemRepository) GetItemCount() (int, error) {
	return len(m.known), nil
}

type MockChannel struct {
	name      string
	delivered []notify.Notification
	failing   bool
}

func (c *MockChannel) Name() string {
	return c.name
}

func (c *MockChannel) Deliver(ctx context.Context, n notify.Notification) error {
	if c.failing {
		return errors.New("delivery failed")
	}
	c.delivered = append(c.delivered, n)
	return nil
}

func newFeedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
}

func newTestTask(url string, feedRepo *MockFeedRepository, itemRepo *MockItemRepository,
	channels ...notify.Channel) *ProcessFeedTask {
	config := &feed.Config{
		Name: "test-feed",
		URL:  url,
		Settings: feed.ConfigSettings{
			Enabled: true,
			Timeout: 5,
		},
	}
	return NewProcessFeedTask(config.Name, config, &http.Client{},
		feedRepo, itemRepo, channels, "rss-herald-test/1.0")
}

func TestExecuteNewFeedPersistsAfterValidation(t *testing.T) {
	server := newFeedServer(t, rssTwoItems)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook"}

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Only the latest item validates the channels on a new feed.
	if len(channel.delivered) != 1 {
		t.Fatalf("Expected 1 delivered notification, got %d", len(channel.delivered))
	}
	if channel.delivered[0].Title != "Version 2.0" {
		t.Errorf("Expected latest item delivered first, got %q", channel.delivered[0].Title)
	}

	if len(feedRepo.feeds) != 1 {
		t.Errorf("Expected 1 feed persisted, got %d", len(feedRepo.feeds))
	}
	// Both items are persisted even though only one was delivered.
	if len(feedRepo.insertedItems) != 2 {
		t.Errorf("Expected 2 items persisted, got %d", len(feedRepo.insertedItems))
	}
}

func TestExecuteNewFeedHeldBackOnDeliveryFailure(t *testing.T) {
	server := newFeedServer(t, rssTwoItems)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook", failing: true}

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	// Delivery failure is non-fatal: the cycle completes without error.
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(feedRepo.feeds) != 0 {
		t.Errorf("Expected no feed persisted after delivery failure, got %d", len(feedRepo.feeds))
	}
	if len(feedRepo.insertedItems) != 0 {
		t.Errorf("Expected no items persisted, got %d", len(feedRepo.insertedItems))
	}

	// Next cycle with a working channel succeeds from scratch.
	channel.failing = false
	task2 := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task2.Start()

	if err := task2.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error on retry, got %v", err)
	}
	if len(feedRepo.feeds) != 1 {
		t.Errorf("Expected feed persisted on retry, got %d", len(feedRepo.feeds))
	}
}

func TestExecuteKnownFeedNotifiesOnlyNewItems(t *testing.T) {
	server := newFeedServer(t, rssTwoItems)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook"}

	// Pre-seed the store: the feed is known and "Version 1.0" already exists.
	parsed := &feed.Feed{Title: "Release Notes", Link: "https://example.com/releases"}
	feedHash := feed.FeedHash(parsed)
	feedRepo.feeds[feedHash] = database.Feed{Hash: feedHash}

	oldItem := feed.Item{
		Title:   "Version 1.0",
		Link:    "https://example.com/releases/1.0",
		Updated: "Mon, 05 Jan 2026 10:00:00 GMT",
	}
	itemRepo.known[feed.ItemHash(oldItem, feed.Policy{})] = true

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(channel.delivered) != 1 {
		t.Fatalf("Expected 1 delivered notification, got %d", len(channel.delivered))
	}
	if channel.delivered[0].Title != "Version 2.0" {
		t.Errorf("Expected only the new item delivered, got %q", channel.delivered[0].Title)
	}
	if len(itemRepo.insertedItems) != 1 {
		t.Errorf("Expected 1 item persisted, got %d", len(itemRepo.insertedItems))
	}
}

func TestExecuteKnownFeedHoldsItemsIndependently(t *testing.T) {
	server := newFeedServer(t, rssTwoItems)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()

	parsed := &feed.Feed{Title: "Release Notes", Link: "https://example.com/releases"}
	feedHash := feed.FeedHash(parsed)
	feedRepo.feeds[feedHash] = database.Feed{Hash: feedHash}

	// The channel fails only for one of the two new items.
	channel := &selectiveChannel{failTitle: "Version 2.0"}

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// The failing item is held, its sibling goes through.
	if len(itemRepo.insertedItems) != 1 {
		t.Fatalf("Expected 1 item persisted, got %d", len(itemRepo.insertedItems))
	}
	if itemRepo.insertedItems[0].Title != "Version 1.0" {
		t.Errorf("Expected unaffected sibling persisted, got %q", itemRepo.insertedItems[0].Title)
	}
}

type selectiveChannel struct {
	failTitle string
}

func (c *selectiveChannel) Name() string { return "selective" }

func (c *selectiveChannel) Deliver(ctx context.Context, n notify.Notification) error {
	if n.Title == c.failTitle {
		return errors.New("delivery failed")
	}
	return nil
}

func TestExecuteSecondChannelFailureHoldsItem(t *testing.T) {
	server := newFeedServer(t, rssTwoItems)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	first := &MockChannel{name: "first"}
	second := &MockChannel{name: "second", failing: true}

	task := newTestTask(server.URL, feedRepo, itemRepo, first, second)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Every channel must succeed before anything is persisted.
	if len(feedRepo.feeds) != 0 {
		t.Errorf("Expected no feed persisted when one channel fails, got %d", len(feedRepo.feeds))
	}
	if len(first.delivered) != 1 {
		t.Errorf("Expected first channel to have delivered once, got %d", len(first.delivered))
	}
}

func TestExecuteStoreFailurePropagates(t *testing.T) {
	server := newFeedServer(t, rssTwoItems)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	feedRepo.failExists = true
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook"}

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	err := task.Execute(context.Background())
	if err == nil {
		t.Fatal("Expected store error to propagate")
	}
	if !errors.Is(err, database.ErrStore) {
		t.Errorf("Expected error wrapping ErrStore, got %v", err)
	}
	if len(channel.delivered) != 0 {
		t.Errorf("Expected no deliveries on store failure, got %d", len(channel.delivered))
	}
}

func TestExecuteUnsupportedDialect(t *testing.T) {
	server := newFeedServer(t, `<?xml version="1.0"?><html><body>not a feed</body></html>`)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook"}

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	err := task.Execute(context.Background())
	if !errors.Is(err, feed.ErrUnsupportedDialect) {
		t.Errorf("Expected ErrUnsupportedDialect, got %v", err)
	}
}

func TestExecuteMalformedDocument(t *testing.T) {
	server := newFeedServer(t, `<rss version="2.0"><channel><title>Broken</channel></rss>`)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()

	task := newTestTask(server.URL, feedRepo, itemRepo)
	task.Start()

	err := task.Execute(context.Background())
	if !errors.Is(err, feed.ErrMalformedDocument) {
		t.Errorf("Expected ErrMalformedDocument, got %v", err)
	}
}

func TestExecuteDisabledFeedSkipped(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook"}

	config := &feed.Config{
		Name: "disabled-feed",
		URL:  "http://localhost:1/feed.xml",
		Settings: feed.ConfigSettings{
			Enabled: false,
			Timeout: 5,
		},
	}
	task := NewProcessFeedTask(config.Name, config, &http.Client{},
		feedRepo, itemRepo, []notify.Channel{channel}, "rss-herald-test/1.0")
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected disabled feed to be a no-op, got %v", err)
	}
	if len(channel.delivered) != 0 {
		t.Errorf("Expected no deliveries for disabled feed, got %d", len(channel.delivered))
	}
}

func TestExecuteEmptyNewFeedPersistedWithoutValidation(t *testing.T) {
	server := newFeedServer(t, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Empty</title><link>https://example.com/empty</link></channel></rss>`)
	defer server.Close()

	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()
	channel := &MockChannel{name: "webhook"}

	task := newTestTask(server.URL, feedRepo, itemRepo, channel)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(feedRepo.feeds) != 1 {
		t.Errorf("Expected empty feed persisted, got %d", len(feedRepo.feeds))
	}
	if len(channel.delivered) != 0 {
		t.Errorf("Expected no deliveries for empty feed, got %d", len(channel.delivered))
	}
}

func TestExecuteFetchFailure(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	itemRepo := NewMockItemRepository()

	task := newTestTask("http://localhost:1/feed.xml", feedRepo, itemRepo)
	task.Start()

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error for unreachable feed URL")
	}
}
