package notify

import "context"

// Notification carries everything a channel needs to announce one new item.
// Date is the raw pubDate/updated string from the source document.
type Notification struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
	Date    string `json:"date"`
}

// Channel is a delivery sink for notifications. The gate treats every
// implementation identically: an item is persisted only when every
// registered channel returns nil for it.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}
