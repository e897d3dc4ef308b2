// Package filters decides which provider article URLs are kept.
package filters

import (
	"net/url"
	"strings"
)

// URLFilter defines filtering rules for a specific domain
type URLFilter struct {
	Domain       string
	AllowedPaths []string // If empty, allow all paths
	BlockedPaths []string // Takes priority over AllowedPaths
}

// FilterRegistry manages URL filtering rules. A nil registry allows
// everything.
type FilterRegistry struct {
	filters []URLFilter
}

// NewFilterRegistry creates a new filter registry
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{
		filters: make([]URLFilter, 0),
	}
}

// ParseBlocklist builds a registry from entries like "example.com" (block the
// whole domain) or "example.com/sponsored" (block one path prefix).
func ParseBlocklist(entries []string) *FilterRegistry {
	r := NewFilterRegistry()
	for _, e := range entries {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" {
			continue
		}
		domain, path, hasPath := strings.Cut(e, "/")
		blocked := "/"
		if hasPath && path != "" {
			blocked += path
		}
		if f := r.lookup(domain); f != nil {
			f.BlockedPaths = append(f.BlockedPaths, blocked)
			continue
		}
		r.Register(URLFilter{Domain: domain, BlockedPaths: []string{blocked}})
	}
	return r
}

func (r *FilterRegistry) lookup(domain string) *URLFilter {
	for i := range r.filters {
		if r.filters[i].Domain == domain {
			return &r.filters[i]
		}
	}
	return nil
}

// Register adds a new URL filter
func (r *FilterRegistry) Register(filter URLFilter) {
	r.filters = append(r.filters, filter)
}

// Len returns the number of registered filters.
func (r *FilterRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.filters)
}

// ShouldProcess checks if a URL should be kept based on registered filters.
// Filters match on the host: the domain itself or any subdomain of it.
func (r *FilterRegistry) ShouldProcess(urlStr string) bool {
	if r == nil || len(r.filters) == 0 {
		return true
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	path := u.Path
	if path == "" {
		path = "/"
	}

	var matchedFilter *URLFilter
	for i := range r.filters {
		d := r.filters[i].Domain
		if host == d || strings.HasSuffix(host, "."+d) {
			matchedFilter = &r.filters[i]
			break
		}
	}

	// If no filter matches, allow processing
	if matchedFilter == nil {
		return true
	}

	// Check blocked paths first (highest priority)
	for _, blocked := range matchedFilter.BlockedPaths {
		if strings.HasPrefix(path, blocked) {
			return false
		}
	}

	// If no allowed paths specified, allow all (except blocked)
	if len(matchedFilter.AllowedPaths) == 0 {
		return true
	}

	for _, allowed := range matchedFilter.AllowedPaths {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}

	return false
}
