package feed

// Feed processing types

// Dialect identifies the XML format of a feed document.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectRSS
	DialectAtom
)

func (d Dialect) String() string {
	switch d {
	case DialectRSS:
		return "rss"
	case DialectAtom:
		return "atom"
	default:
		return "unknown"
	}
}

// Feed is the normalized form of one decoded document. Link holds the
// canonical identity of the feed: the channel <link> for RSS, the feed
// <id> for Atom.
type Feed struct {
	Title string
	Link  string
	Items []Item
}

// Item is one normalized entry. Link holds the item <link> for RSS or the
// entry <id> for Atom. Updated carries the pubDate/updated value as the raw
// source string; it is never parsed into a time type here.
type Item struct {
	Title   string
	Link    string
	Summary string
	Content string
	Updated string
}

// SummaryOrContent returns the summary when present, falling back to the
// full content. Atom entries often carry only one of the two.
func (it Item) SummaryOrContent() string {
	if it.Summary != "" {
		return it.Summary
	}
	return it.Content
}

// Policy controls which volatile fields participate in item identity and
// which dialect-specific rewrites apply during decoding. It is owned by the
// caller and never mutated by this package.
type Policy struct {
	OmitUpdatedFromHash bool `yaml:"omit_updated_from_hash"`
	GolangBlogMode      bool `yaml:"golang_blog_mode"`
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Policy   Policy         `yaml:"hash"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
}
