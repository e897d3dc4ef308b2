package cache

import (
	"encoding/json"
	"slices"
	"strings"
)

const (
	newsPrefix   = "news"
	searchPrefix = "search"
)

// NewsKey builds the personalized-feed key. Preferences are trimmed, sorted
// and deduplicated so that users holding the same topics in a different order
// share one entry.
func NewsKey(preferences []string) string {
	sorted := make([]string, len(preferences))
	for i, p := range preferences {
		sorted[i] = strings.TrimSpace(p)
	}
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	b, _ := json.Marshal(sorted)
	return newsPrefix + ":" + string(b)
}

// SearchKey builds the key for a free-text search and its optional filters.
// A keyword search is a search without filters and shares this key space.
func SearchKey(query, from, to, sortBy string) string {
	b, _ := json.Marshal([]string{query, from, to, sortBy})
	return searchPrefix + ":" + string(b)
}

// IsNewsKey reports whether key was produced by NewsKey.
func IsNewsKey(key string) bool {
	return strings.HasPrefix(key, newsPrefix+":")
}
