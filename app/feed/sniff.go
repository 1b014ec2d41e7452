package feed

import "bytes"

// DetectDialect classifies a raw document by the cheapest possible check:
// the presence of a closing </rss> or </feed> tag. Callers must reject
// DialectUnknown before invoking Decode.
func DetectDialect(data []byte) Dialect {
	switch {
	case bytes.Contains(data, []byte("</rss>")):
		return DialectRSS
	case bytes.Contains(data, []byte("</feed>")):
		return DialectAtom
	default:
		return DialectUnknown
	}
}
