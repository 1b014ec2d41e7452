package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	// ErrMalformedDocument is returned when the underlying XML is not
	// well-formed. No partial feed is ever returned alongside it.
	ErrMalformedDocument = errors.New("malformed feed document")

	// ErrUnsupportedDialect is returned when Decode is invoked with a
	// dialect other than RSS or Atom.
	ErrUnsupportedDialect = errors.New("unsupported feed dialect")
)

// tagRole labels one open tag on the context stack. The same tag name maps
// to different roles depending on what encloses it: a <title> directly under
// the feed root is the feed title, a <title> under an item/entry is the item
// title.
type tagRole int

const (
	roleOther tagRole = iota

	roleChannel
	roleChannelTitle
	roleChannelLink
	roleItem
	roleItemTitle
	roleItemLink
	roleItemDescription
	roleItemPubDate

	roleFeed
	roleFeedTitle
	roleFeedID
	roleEntry
	roleEntryTitle
	roleEntryID
	roleEntryUpdated
	roleEntrySummary
	roleEntryContent
)

// golangBlogTagPrefix is the legacy tag-URI prefix the Go blog used before
// switching its entry ids to plain URLs.
const golangBlogTagPrefix = "tag:blog.golang.org,2013:"

// Decode runs a single streaming pass over the document and returns the
// normalized feed. Tag roles are resolved against the top of a context
// stack, so same-named tags nested at different depths land in the right
// fields; unknown tags push roleOther to keep the stack aligned with the
// document nesting, and their text is discarded.
func Decode(data []byte, dialect Dialect, policy Policy) (*Feed, error) {
	var classify func(name string, parent tagRole) tagRole
	switch dialect {
	case DialectRSS:
		classify = rssRole
	case DialectAtom:
		classify = atomRole
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}

	f := &Feed{}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var stack []tagRole
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			role := classify(t.Name.Local, top(stack))
			stack = append(stack, role)
			if role == roleItem || role == roleEntry {
				f.Items = append(f.Items, Item{})
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			assignText(f, top(stack), text)
		}
	}

	if policy.GolangBlogMode {
		for i := range f.Items {
			f.Items[i].Link = rewriteGolangBlogID(f.Items[i].Link)
		}
	}

	return f, nil
}

func top(stack []tagRole) tagRole {
	if len(stack) == 0 {
		return roleOther
	}
	return stack[len(stack)-1]
}

func rssRole(name string, parent tagRole) tagRole {
	switch name {
	case "channel":
		return roleChannel
	case "item":
		return roleItem
	case "title":
		switch parent {
		case roleChannel:
			return roleChannelTitle
		case roleItem:
			return roleItemTitle
		}
	case "link":
		switch parent {
		case roleChannel:
			return roleChannelLink
		case roleItem:
			return roleItemLink
		}
	case "description":
		if parent == roleItem {
			return roleItemDescription
		}
	case "pubDate":
		if parent == roleItem {
			return roleItemPubDate
		}
	}
	return roleOther
}

func atomRole(name string, parent tagRole) tagRole {
	switch name {
	case "feed":
		return roleFeed
	case "entry":
		return roleEntry
	case "title":
		switch parent {
		case roleFeed:
			return roleFeedTitle
		case roleEntry:
			return roleEntryTitle
		}
	case "id":
		switch parent {
		case roleFeed:
			return roleFeedID
		case roleEntry:
			return roleEntryID
		}
	case "updated":
		if parent == roleEntry {
			return roleEntryUpdated
		}
	case "summary":
		if parent == roleEntry {
			return roleEntrySummary
		}
	case "content":
		if parent == roleEntry {
			return roleEntryContent
		}
	}
	return roleOther
}

// assignText writes a text node into the field selected by the current
// top-of-stack role. Text split across CDATA sections or entity boundaries
// arrives as multiple CharData tokens, so values are appended rather than
// assigned.
func assignText(f *Feed, role tagRole, text string) {
	switch role {
	case roleChannelTitle, roleFeedTitle:
		f.Title += text
		return
	case roleChannelLink, roleFeedID:
		f.Link += text
		return
	}

	if len(f.Items) == 0 {
		return
	}
	it := &f.Items[len(f.Items)-1]

	switch role {
	case roleItemTitle, roleEntryTitle:
		it.Title += text
	case roleItemLink, roleEntryID:
		it.Link += text
	case roleItemDescription, roleEntrySummary:
		it.Summary += text
	case roleEntryContent:
		it.Content += text
	case roleItemPubDate, roleEntryUpdated:
		it.Updated += text
	}
}

// rewriteGolangBlogID maps a legacy tag-URI entry id onto its https URL so
// identity stays stable across the blog platform's id scheme change.
func rewriteGolangBlogID(id string) string {
	rest, ok := strings.CutPrefix(id, golangBlogTagPrefix)
	if !ok {
		return id
	}
	return "https://" + rest
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
