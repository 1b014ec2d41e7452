package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Content hashing is the identity of every persisted entity: the hash is the
// primary key in the store and the basis for new-item detection. Hashes must
// be byte-identical across polling cycles for unchanged content, so only
// stable fields participate.

// FeedHash identifies a feed by its title and canonical link/id. The item
// list is deliberately excluded so a feed keeps its identity as new items
// accumulate.
func FeedHash(f *Feed) string {
	return hashFields(f.Title, f.Link)
}

// ItemHash identifies an item by its title and link/id, plus the raw
// updated/pubDate string unless the policy omits it. Summary and content are
// never included: publishers routinely edit body text of already-published
// items without intending to re-trigger notifications.
func ItemHash(it Item, policy Policy) string {
	fields := []string{it.Title, it.Link}
	if !policy.OmitUpdatedFromHash {
		fields = append(fields, it.Updated)
	}
	return hashFields(fields...)
}

func hashFields(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}
